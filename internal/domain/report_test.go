package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Sources:    []string{"/abs/src"},
		Dest:       "/abs/dest",
		DryRun:     true,
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Summary:    ReportSummary{Scanned: 5},
		Groups: []GroupResult{
			{Digest: "ffff", Size: 3, Original: "/abs/src/b.jpg", Policy: PolicyRelocate, Files: []FileResult{
				{Src: "/abs/src/b2.jpg", Status: FileStatusMoved},
			}},
			{Digest: "aaaa", Size: 7, Original: "/abs/src/a.jpg", Policy: PolicyDelete, Confirmed: false, Files: []FileResult{
				{Src: "/abs/src/a2.jpg", Status: FileStatusKept},
			}},
		},
		Sorted: []SortResult{
			{Src: "/abs/src/z.jpg", Status: FileStatusMoved},
			{Src: "/abs/src/a.jpg", Status: FileStatusAlreadySorted},
			{Src: "/abs/src/m.jpg", Status: FileStatusSkipped, ErrorCode: ErrCodeDateUnknown},
		},
	}

	r.Finalize()

	if r.Groups[0].Digest != "aaaa" || r.Groups[1].Digest != "ffff" {
		t.Fatalf("groups 排序不符合契约：%v", []string{r.Groups[0].Digest, r.Groups[1].Digest})
	}
	if r.Sorted[0].Src != "/abs/src/a.jpg" || r.Sorted[2].Src != "/abs/src/z.jpg" {
		t.Fatalf("sorted 排序不符合契约：%+v", r.Sorted)
	}

	s := r.Summary
	if s.Scanned != 5 {
		t.Fatalf("Scanned 应保留调用方设置的值：%+v", s)
	}
	if s.Groups != 2 || s.Duplicates != 2 || s.Relocated != 1 || s.Deleted != 0 {
		t.Fatalf("组计数不正确：%+v", s)
	}
	if s.Sorted != 1 || s.AlreadySorted != 1 || s.Skipped != 1 || s.Failed != 0 {
		t.Fatalf("归档计数不正确：%+v", s)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	// time.Time 在 UTC 下应输出 'Z' 后缀。
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Finalize_DryRunPlannedCounting(t *testing.T) {
	r := RunReport{
		DryRun: true,
		Groups: []GroupResult{
			{Digest: "aa", Policy: PolicyRelocate, Files: []FileResult{
				{Src: "x", Status: FileStatusPlanned},
				{Src: "y", Status: FileStatusPlanned},
			}},
			{Digest: "bb", Policy: PolicyDelete, Confirmed: true, Files: []FileResult{
				{Src: "z", Status: FileStatusPlanned},
			}},
		},
		Sorted: []SortResult{{Src: "s", Status: FileStatusPlanned}},
	}
	r.Finalize()

	if r.Summary.Relocated != 2 || r.Summary.Deleted != 1 || r.Summary.Sorted != 1 {
		t.Fatalf("dry-run planned 计数不正确：%+v", r.Summary)
	}
}

func TestRunReport_Finalize_SyntheticErrorsCountAsFailed(t *testing.T) {
	r := RunReport{
		Errors: []RunError{{ErrorCode: ErrCodeNoImages, ErrorMsg: "未找到候选图片"}},
	}
	r.Finalize()
	if r.Summary.Failed != 1 {
		t.Fatalf("合成错误应计入 Failed：%+v", r.Summary)
	}
}
