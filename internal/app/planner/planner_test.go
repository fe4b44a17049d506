package planner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadDirState_MissingDirIsEmpty(t *testing.T) {
	st, err := ReadDirState(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(st.Names) != 0 {
		t.Fatalf("期望空状态：%+v", st)
	}
}

func TestAllocName_SuffixBeforeExtension(t *testing.T) {
	used := map[string]struct{}{
		"photo.jpg":   {},
		"photo_1.jpg": {},
	}
	if got := AllocName("photo.jpg", used); got != "photo_2.jpg" {
		t.Fatalf("期望 photo_2.jpg，实际=%q", got)
	}
	if got := AllocName("fresh.png", used); got != "fresh.png" {
		t.Fatalf("无冲突时应保留原名，实际=%q", got)
	}
}

func TestPlanSort_FreeName(t *testing.T) {
	day := filepath.Join(t.TempDir(), "2020", "05", "17")
	st, err := ReadDirState(day)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	p := PlanSort("/src/photo.jpg", st)
	if p.Already {
		t.Fatalf("空目录不应判定为已归位")
	}
	if p.DstAbs != filepath.Join(day, "photo.jpg") {
		t.Fatalf("期望 dst=%q，实际=%q", filepath.Join(day, "photo.jpg"), p.DstAbs)
	}
}

func TestPlanSort_CollisionGetsSuffix(t *testing.T) {
	day := t.TempDir()
	// 目录里已有不相干的同名文件：源必须落到 photo_1.jpg，绝不覆盖。
	if err := os.WriteFile(filepath.Join(day, "photo.jpg"), []byte("other"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "photo.jpg")
	if err := os.WriteFile(src, []byte("mine"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	st, err := ReadDirState(day)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	p := PlanSort(src, st)
	if p.Already {
		t.Fatalf("不同文件不应判定为已归位")
	}
	if p.DstAbs != filepath.Join(day, "photo_1.jpg") {
		t.Fatalf("期望 photo_1.jpg，实际=%q", p.DstAbs)
	}
}

func TestPlanSort_AlreadyPlacedIsIdempotent(t *testing.T) {
	day := t.TempDir()
	src := filepath.Join(day, "photo.jpg")
	if err := os.WriteFile(src, []byte("mine"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}

	st, err := ReadDirState(day)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	p := PlanSort(src, st)
	if !p.Already {
		t.Fatalf("同一底层文件必须判定为已归位")
	}
	if p.DstAbs != src {
		t.Fatalf("期望 dst=源路径，实际=%q", p.DstAbs)
	}
}

func TestPlanSort_ClaimedButNotOnDiskKeepsAllocating(t *testing.T) {
	day := filepath.Join(t.TempDir(), "day")
	st, err := ReadDirState(day)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	// 本次运行已占名但尚未落盘（dry-run 规划场景）。
	st.Claim("photo.jpg")

	p := PlanSort("/src/photo.jpg", st)
	if p.Already {
		t.Fatalf("占名条目 stat 不到，不应判定为已归位")
	}
	if p.DstAbs != filepath.Join(day, "photo_1.jpg") {
		t.Fatalf("期望 photo_1.jpg，实际=%q", p.DstAbs)
	}
}
