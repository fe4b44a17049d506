package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Olivier619/PhotoOrganizer/internal/app/planner"
	"github.com/Olivier619/PhotoOrganizer/internal/domain"
	"github.com/Olivier619/PhotoOrganizer/internal/infra/fsx"
)

// Confirmer 是注入给删除策略的“破坏性动作确认”能力。
// 核心只在需要时同步调用并阻塞等待；测试可替换为 always-yes/always-no。
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc 让普通函数满足 Confirmer。
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// ResolveOptions 控制重复组的处理方式。
type ResolveOptions struct {
	Policy    string // domain.PolicyList / PolicyRelocate / PolicyDelete
	TargetDir string // relocate 的目标目录
	Apply     bool   // false = dry-run：只规划，不触盘
	Confirm   Confirmer

	// Progress 可选：每处理完一组回调一次（用于进度输出）。
	Progress func(done, total int, res domain.GroupResult, dur time.Duration)
}

// ResolveDuplicates 按策略处理重复组。
//
// 硬约束：
// - 每组 FileIdx[0] 是 original，永不触碰；其余为候选
// - relocate 目标目录创建失败：整批降级为 list（返回该错误供上层记录），不中止
// - 候选在检测与动作之间消失：跳过并记 warning，永不让批次出错
// - delete 必须经 Confirmer 肯定确认；拒绝是正常结果（组保持原样），不是错误
// - dry-run：任何策略都只规划（planned），不建目录、不移动、不删除、不提问
func ResolveDuplicates(files []domain.ImageFile, groups []domain.DuplicateGroup, opts ResolveOptions) ([]domain.GroupResult, error) {
	policy := opts.Policy
	var downgradeErr error

	var used map[string]struct{}
	if policy == domain.PolicyRelocate {
		if opts.Apply {
			if err := fsx.EnsureDir(opts.TargetDir); err != nil {
				// 目标目录建不出来：剩余全部降级为只列出。
				downgradeErr = fmt.Errorf("重复文件目录创建失败，降级为 list：%w", err)
				policy = domain.PolicyList
			}
		}
		if policy == domain.PolicyRelocate {
			st, err := planner.ReadDirState(opts.TargetDir)
			if err != nil {
				downgradeErr = fmt.Errorf("读取重复文件目录失败，降级为 list：%w", err)
				policy = domain.PolicyList
			} else {
				used = st.Names
			}
		}
	}

	results := make([]domain.GroupResult, 0, len(groups))
	for gi, g := range groups {
		started := time.Now()

		gr := domain.GroupResult{
			Digest:   g.Digest,
			Size:     g.Size,
			Original: files[g.FileIdx[0]].AbsPath,
			Policy:   policy,
			Files:    make([]domain.FileResult, 0, len(g.FileIdx)-1),
		}

		switch policy {
		case domain.PolicyRelocate:
			resolveRelocate(&gr, files, g, used, opts)
		case domain.PolicyDelete:
			resolveDelete(&gr, files, g, opts)
		default:
			for _, idx := range g.FileIdx[1:] {
				gr.Files = append(gr.Files, domain.FileResult{
					Src:    files[idx].AbsPath,
					Status: domain.FileStatusKept,
				})
			}
		}

		results = append(results, gr)
		if opts.Progress != nil {
			opts.Progress(gi+1, len(groups), gr, time.Since(started))
		}
	}
	return results, downgradeErr
}

func resolveRelocate(gr *domain.GroupResult, files []domain.ImageFile, g domain.DuplicateGroup, used map[string]struct{}, opts ResolveOptions) {
	for _, idx := range g.FileIdx[1:] {
		src := files[idx].AbsPath
		fr := domain.FileResult{Src: src}

		if opts.Apply {
			if _, err := os.Lstat(src); err != nil {
				// 候选已消失（可能被并发进程或先前动作消费）：跳过即可。
				fr.Status = domain.FileStatusSkipped
				fr.ErrorCode = domain.ErrCodeVanished
				fr.ErrorMsg = fmt.Sprintf("候选已不存在，跳过：%v", err)
				gr.Files = append(gr.Files, fr)
				continue
			}
		}

		name := planner.AllocName(filepath.Base(src), used)
		dst := filepath.Join(opts.TargetDir, name)
		fr.Dst = dst

		if !opts.Apply {
			used[name] = struct{}{}
			fr.Status = domain.FileStatusPlanned
			gr.Files = append(gr.Files, fr)
			continue
		}

		if err := fsx.Rename(src, dst); err != nil {
			fr.Status = domain.FileStatusFailed
			fr.ErrorCode = domain.ErrCodeMoveFailed
			fr.ErrorMsg = err.Error()
		} else {
			used[name] = struct{}{}
			fr.Status = domain.FileStatusMoved
		}
		gr.Files = append(gr.Files, fr)
	}
}

func resolveDelete(gr *domain.GroupResult, files []domain.ImageFile, g domain.DuplicateGroup, opts ResolveOptions) {
	cands := g.FileIdx[1:]

	if !opts.Apply {
		// dry-run 不提问：只展示将要删除什么，留待 apply 时确认。
		for _, idx := range cands {
			gr.Files = append(gr.Files, domain.FileResult{
				Src:    files[idx].AbsPath,
				Status: domain.FileStatusPlanned,
			})
		}
		return
	}

	prompt := fmt.Sprintf("确认删除该组的 %d 个重复文件（保留 %s）", len(cands), gr.Original)
	if opts.Confirm == nil || !opts.Confirm.Confirm(prompt) {
		// 确认被拒绝：正常的否定结果，组保持原样。
		gr.Confirmed = false
		for _, idx := range cands {
			gr.Files = append(gr.Files, domain.FileResult{
				Src:    files[idx].AbsPath,
				Status: domain.FileStatusKept,
			})
		}
		return
	}
	gr.Confirmed = true

	for _, idx := range cands {
		src := files[idx].AbsPath
		fr := domain.FileResult{Src: src}

		if _, err := os.Lstat(src); err != nil {
			fr.Status = domain.FileStatusSkipped
			fr.ErrorCode = domain.ErrCodeVanished
			fr.ErrorMsg = fmt.Sprintf("候选已不存在，跳过删除：%v", err)
			gr.Files = append(gr.Files, fr)
			continue
		}

		if err := os.Remove(src); err != nil {
			fr.Status = domain.FileStatusFailed
			fr.ErrorCode = domain.ErrCodeDeleteFailed
			fr.ErrorMsg = err.Error()
		} else {
			fr.Status = domain.FileStatusDeleted
		}
		gr.Files = append(gr.Files, fr)
	}
}
