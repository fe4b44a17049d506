package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Olivier619/PhotoOrganizer/internal/domain"
)

func TestCLI_NoTTY_StdoutOnlyRunReportJSON(t *testing.T) {
	// 这个测试锁定对外契约：stdout 非 TTY 时只能输出一个 RunReport JSON（进度/配置必须走 stderr 或直接禁用）。
	root := t.TempDir()

	// 准备最小输入：两张内容相同的照片 + 一张独立照片。
	src := filepath.Join(root, "photos")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	for name, body := range map[string]string{
		"a.jpg": "same bytes",
		"b.jpg": "same bytes",
		"c.jpg": "unique bytes",
	} {
		if err := os.WriteFile(filepath.Join(src, name), []byte(body), 0o644); err != nil {
			t.Fatalf("写入照片失败：%v", err)
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("读取 cwd 失败：%v", err)
	}
	repoRoot := filepath.Clean(filepath.Join(wd, "..", ".."))

	// dry-run（默认）：不触盘，stdout 仍必须给出完整报告。
	cmd := exec.Command("go", "run", "./cmd/photoorg", "run", src,
		"--dest", filepath.Join(root, "sorted"),
		"--dups", "relocate",
	)
	cmd.Dir = repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("命令执行失败：%v\nstderr=%s\nstdout=%s", err, stderr.String(), stdout.String())
	}

	// stdout 必须是单个 JSON。
	var rr domain.RunReport
	if err := json.Unmarshal(stdout.Bytes(), &rr); err != nil {
		t.Fatalf("stdout 不是合法的 RunReport JSON：%v\nstdout=%q", err, stdout.String())
	}
	if !rr.DryRun || rr.Summary.Scanned != 3 || rr.Summary.Groups != 1 {
		t.Fatalf("报告内容不符合预期：%+v", rr.Summary)
	}
	// 进度/配置不应出现在 stdout。
	if strings.Contains(stdout.String(), "配置（生效）") || strings.Contains(stdout.String(), "进度:") {
		t.Fatalf("stdout 不应包含进度/配置输出：%q", stdout.String())
	}

	// stderr 至少应包含最终摘要行。
	if !strings.Contains(stderr.String(), "完成：scanned=") {
		t.Fatalf("stderr 缺少完成摘要：%q", stderr.String())
	}

	// dry-run 禁止落盘。
	if _, err := os.Stat(filepath.Join(root, "sorted")); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建归档目录：%v", err)
	}
}
