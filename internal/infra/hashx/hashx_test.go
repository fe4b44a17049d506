package hashx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSum_ContentOnlyEquality(t *testing.T) {
	dir := t.TempDir()

	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "deep", "nested", "renamed.png")
	if err := os.MkdirAll(filepath.Dir(b), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	content := []byte("identical bytes")
	if err := os.WriteFile(a, content, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	if err := os.WriteFile(b, content, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	// 时间戳不同不应影响摘要。
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(b, old, old); err != nil {
		t.Fatalf("Chtimes 失败：%v", err)
	}

	da, ok := Sum(a)
	if !ok {
		t.Fatalf("期望成功计算摘要")
	}
	db, ok := Sum(b)
	if !ok {
		t.Fatalf("期望成功计算摘要")
	}
	if da != db {
		t.Fatalf("相同内容摘要不一致：%q vs %q", da, db)
	}
	if len(da) != 32 {
		t.Fatalf("期望 32 位十六进制摘要，实际：%q", da)
	}
}

func TestSum_DistinctContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	if err := os.WriteFile(a, []byte("content X"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	if err := os.WriteFile(b, []byte("content Y"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	da, _ := Sum(a)
	db, _ := Sum(b)
	if da == db {
		t.Fatalf("不同内容摘要相同：%q", da)
	}
}

func TestSum_EmptyFileAndMultiBlock(t *testing.T) {
	dir := t.TempDir()

	empty1 := filepath.Join(dir, "e1.gif")
	empty2 := filepath.Join(dir, "e2.gif")
	if err := os.WriteFile(empty1, nil, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	if err := os.WriteFile(empty2, nil, 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	d1, ok := Sum(empty1)
	if !ok {
		t.Fatalf("零长度文件也应得到摘要")
	}
	d2, _ := Sum(empty2)
	if d1 != d2 {
		t.Fatalf("零长度文件摘要不一致：%q vs %q", d1, d2)
	}

	// 超过一个块大小，确保流式读取贯穿到 EOF。
	big := filepath.Join(dir, "big.bmp")
	if err := os.WriteFile(big, []byte(strings.Repeat("ab", BlockSize)), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	if _, ok := Sum(big); !ok {
		t.Fatalf("多块文件应能计算摘要")
	}
}

func TestSum_UnreadableFile(t *testing.T) {
	if _, ok := Sum(filepath.Join(t.TempDir(), "missing.jpg")); ok {
		t.Fatalf("不存在的文件应返回 ok=false")
	}
}
