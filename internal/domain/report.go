package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	FileStatusPlanned       = "planned"
	FileStatusMoved         = "moved"
	FileStatusDeleted       = "deleted"
	FileStatusKept          = "kept"
	FileStatusAlreadySorted = "already_sorted"
	FileStatusSkipped       = "skipped"
	FileStatusFailed        = "failed"
)

const (
	PolicyList     = "list"
	PolicyRelocate = "relocate"
	PolicyDelete   = "delete"
)

const (
	ErrCodeIOFailed       = "io_failed"
	ErrCodeMoveFailed     = "move_failed"
	ErrCodeDeleteFailed   = "delete_failed"
	ErrCodeDateUnknown    = "date_unknown"
	ErrCodeVanished       = "vanished"
	ErrCodeTargetConflict = "target_conflict"
	ErrCodeDeclined       = "declined"

	ErrCodeNoInput  = "no_input"
	ErrCodeNoImages = "no_images"

	ErrCodeConfigNotFound       = "config_not_found"
	ErrCodeConfigInvalid        = "config_invalid"
	ErrCodeConfigMissingSources = "config_missing_sources"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
// 计数一律来自该报告值，不依赖任何全局可变状态。
type RunReport struct {
	Sources []string `json:"sources"`
	Dest    string   `json:"dest"`
	DryRun  bool     `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Groups  []GroupResult `json:"groups"`
	Sorted  []SortResult  `json:"sorted"`
	Errors  []RunError    `json:"errors"`
}

type ReportSummary struct {
	Scanned       int `json:"scanned"`
	Groups        int `json:"groups"`
	Duplicates    int `json:"duplicates"`
	Relocated     int `json:"relocated"`
	Deleted       int `json:"deleted"`
	Sorted        int `json:"sorted"`
	AlreadySorted int `json:"already_sorted"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

// GroupResult 描述一个重复组的处理结果。
// Original 永远不被动作触碰；Files 只包含 original 之外的候选。
type GroupResult struct {
	Digest   string `json:"digest"`
	Size     int64  `json:"size"`
	Original string `json:"original"`
	Policy   string `json:"policy"`

	// Confirmed 仅对 delete 策略有意义：false 表示确认被拒绝，组保持原样。
	Confirmed bool `json:"confirmed"`

	Files []FileResult `json:"files"`
}

type FileResult struct {
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// SortResult 描述单个文件的按日期归档结果。
type SortResult struct {
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// RunError 是无法归属到某个文件/组的合成错误条目（配置错误、无输入等）。
type RunError struct {
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) 稳定排序：groups 按 digest 字典序，sorted 按 src 字典序
// 3) summary 由条目计算得出（Scanned 由调用方设置，予以保留）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Sources == nil {
		r.Sources = []string{}
	}
	if r.Groups == nil {
		r.Groups = []GroupResult{}
	}
	if r.Sorted == nil {
		r.Sorted = []SortResult{}
	}
	if r.Errors == nil {
		r.Errors = []RunError{}
	}

	sort.SliceStable(r.Groups, func(i, j int) bool { return r.Groups[i].Digest < r.Groups[j].Digest })
	sort.SliceStable(r.Sorted, func(i, j int) bool { return r.Sorted[i].Src < r.Sorted[j].Src })

	s := ReportSummary{Scanned: r.Summary.Scanned}
	s.Groups = len(r.Groups)
	for gi := range r.Groups {
		g := &r.Groups[gi]
		s.Duplicates += len(g.Files)
		for _, f := range g.Files {
			switch f.Status {
			case FileStatusMoved:
				s.Relocated++
			case FileStatusDeleted:
				s.Deleted++
			case FileStatusPlanned:
				// dry-run：按策略归类“将会发生什么”。
				switch g.Policy {
				case PolicyRelocate:
					s.Relocated++
				case PolicyDelete:
					s.Deleted++
				}
			case FileStatusSkipped:
				s.Skipped++
			case FileStatusFailed:
				s.Failed++
			}
		}
	}
	for _, f := range r.Sorted {
		switch f.Status {
		case FileStatusMoved, FileStatusPlanned:
			s.Sorted++
		case FileStatusAlreadySorted:
			s.AlreadySorted++
		case FileStatusSkipped:
			s.Skipped++
		case FileStatusFailed:
			s.Failed++
		}
	}
	s.Failed += len(r.Errors)
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
