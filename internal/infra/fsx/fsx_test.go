package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicReplace_SuccessAndNoTempLeft(t *testing.T) {
	dir := t.TempDir()

	if err := WriteFileAtomicReplace(dir, "a.json", []byte("hello")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatalf("读取文件失败：%v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".a.json.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
	}
}

func TestWriteFileAtomicReplace_RenameFail_CleanupTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return os.ErrPermission
	}
	defer func() { renameFunc = old }()

	err := WriteFileAtomicReplace(dir, "a.json", []byte("hello"))
	if err == nil {
		t.Fatalf("期望失败，但得到 nil")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".a.json.tmp-") {
			t.Fatalf("临时文件未清理：%q", e.Name())
		}
		if e.Name() == "a.json" {
			t.Fatalf("不应写出最终文件：%q", e.Name())
		}
	}
}

func TestSameFile_Identity(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(a, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	b := filepath.Join(dir, "b.jpg")
	if err := os.Link(a, b); err != nil {
		t.Skipf("当前文件系统不支持硬链接：%v", err)
	}

	if !SameFile(a, b) {
		t.Fatalf("硬链接应判定为同一文件")
	}

	c := filepath.Join(dir, "c.jpg")
	if err := os.WriteFile(c, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	if SameFile(a, c) {
		t.Fatalf("内容相同但独立的文件不应判定为同一文件")
	}
	if SameFile(a, filepath.Join(dir, "missing.jpg")) {
		t.Fatalf("不存在的路径不应判定为同一文件")
	}
}

func TestEnsureDir_IdempotentAndConflict(t *testing.T) {
	dir := t.TempDir()

	d := filepath.Join(dir, "x", "y")
	if err := EnsureDir(d); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := EnsureDir(d); err != nil {
		t.Fatalf("幂等调用不应失败：%v", err)
	}

	f := filepath.Join(dir, "f")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	err := EnsureDir(f)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
	if !IsPathTypeConflict(err) {
		t.Fatalf("期望 PathTypeConflictError，实际：%T %v", err, err)
	}
}
