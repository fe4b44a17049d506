package run

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Olivier619/PhotoOrganizer/internal/app"
	"github.com/Olivier619/PhotoOrganizer/internal/app/planner"
	"github.com/Olivier619/PhotoOrganizer/internal/config"
	"github.com/Olivier619/PhotoOrganizer/internal/domain"
	"github.com/Olivier619/PhotoOrganizer/internal/infra/cache"
	"github.com/Olivier619/PhotoOrganizer/internal/infra/fsx"
	"github.com/Olivier619/PhotoOrganizer/internal/infra/hashx"
	"github.com/Olivier619/PhotoOrganizer/internal/photodate"
	"github.com/Olivier619/PhotoOrganizer/internal/scan"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为文件/组级失败（单条失败不影响其他）。
func Execute(eff config.EffectiveConfig, confirm app.Confirmer) domain.RunReport {
	return ExecuteWithObserver(eff, confirm, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 流水线：扫描 -> 重复检测 -> 重复处理 -> 按日期归档。
// 被重复处理消费（已移动/已删除/已规划）的文件不再进入归档阶段，
// 保证 dry-run 与 apply 给出同一份计划。
func ExecuteWithObserver(eff config.EffectiveConfig, confirm app.Confirmer, obs Observer) domain.RunReport {
	started := time.Now().UTC()

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Sources:   eff.Sources,
		Dest:      eff.Dest,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Groups:    make([]domain.GroupResult, 0, 16),
		Sorted:    make([]domain.SortResult, 0, 128),
		Errors:    make([]domain.RunError, 0, 2),
	}

	store := cache.New(eff.Dest, !eff.Apply)
	store.Load()

	// 归档根与重复文件目录永远不作为输入：避免把自己的产物再扫一遍。
	excludes := make([]string, 0, 2+len(eff.ExcludeDirs))
	excludes = append(excludes, eff.Dest, eff.DuplicatesDir)
	excludes = append(excludes, eff.ExcludeDirs...)

	scanStarted := time.Now()
	files, err := scan.ScanImages(eff.Sources, excludes)
	if err != nil {
		rr.Errors = append(rr.Errors, domain.RunError{
			ErrorCode: domain.ErrCodeIOFailed,
			ErrorMsg:  fmt.Sprintf("扫描失败：%v", err),
		})
		return finish(rr)
	}
	scanDur := time.Since(scanStarted)

	rr.Summary.Scanned = len(files)

	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{"files": len(files)}, scanDur)
	}

	if len(files) == 0 {
		rr.Errors = append(rr.Errors, domain.RunError{
			ErrorCode: domain.ErrCodeNoImages,
			ErrorMsg:  "输入目录中没有任何图片文件",
		})
		return finish(rr)
	}

	// 摘要计算挂接缓存：命中则不读文件内容；apply 时新摘要写回。
	digest := func(f domain.ImageFile) (string, bool) {
		if d, ok := store.Get(f.AbsPath, f.Size, f.ModUnix); ok {
			return d, true
		}
		d, ok := hashx.Sum(f.AbsPath)
		if ok {
			store.Put(f.AbsPath, f.Size, f.ModUnix, d)
		}
		return d, ok
	}

	dedupeStarted := time.Now()
	groups, dstat := app.FindDuplicates(files, digest, eff.Concurrency)
	dedupeDur := time.Since(dedupeStarted)

	if obs != nil {
		obs.OnPhaseDone("dedupe", map[string]any{
			"groups":     len(groups),
			"candidates": dstat.Candidates,
			"hashed":     dstat.Hashed,
			"unreadable": dstat.Unreadable,
			"vanished":   dstat.Vanished,
		}, dedupeDur)
	}

	var progress func(done, total int, res domain.GroupResult, dur time.Duration)
	if obs != nil {
		progress = func(done, total int, res domain.GroupResult, dur time.Duration) {
			obs.OnGroupDone(done, total, res, dur)
		}
	}

	results, resolveErr := app.ResolveDuplicates(files, groups, app.ResolveOptions{
		Policy:    eff.Policy,
		TargetDir: eff.DuplicatesDir,
		Apply:     eff.Apply,
		Confirm:   confirm,
		Progress:  progress,
	})
	rr.Groups = append(rr.Groups, results...)
	if resolveErr != nil {
		rr.Errors = append(rr.Errors, domain.RunError{
			ErrorCode: domain.ErrCodeIOFailed,
			ErrorMsg:  resolveErr.Error(),
		})
	}

	// 被重复处理消费的文件退出归档阶段。
	// planned 也算消费：dry-run 的归档计划必须与 apply 实际会做的一致。
	consumed := map[string]struct{}{}
	for gi := range rr.Groups {
		for _, fr := range rr.Groups[gi].Files {
			switch fr.Status {
			case domain.FileStatusMoved, domain.FileStatusDeleted, domain.FileStatusPlanned:
				consumed[fr.Src] = struct{}{}
			}
		}
	}

	sortStarted := time.Now()
	rr.Sorted = append(rr.Sorted, sortPhase(eff, files, consumed)...)
	sortDur := time.Since(sortStarted)

	if obs != nil {
		obs.OnPhaseDone("sort", map[string]any{"files": len(rr.Sorted)}, sortDur)
	}

	if eff.Apply {
		if err := store.Flush(); err != nil {
			rr.Errors = append(rr.Errors, domain.RunError{
				ErrorCode: domain.ErrCodeIOFailed,
				ErrorMsg:  fmt.Sprintf("写入摘要缓存失败：%v", err),
			})
		}
	}

	return finish(rr)
}

// sortPhase 把未被重复处理消费的文件按拍摄日期归档到 <dest>/YYYY/MM/DD/。
//
// 硬约束：
// - 同一底层文件已在目标日目录内：already_sorted，不再移动（幂等）
// - 目标名被占用：追加 _N 后缀，绝不覆盖
// - 日期解析失败（文件已消失）：skipped，不影响其他文件
// - dry-run：不建目录、不移动；通过 Claim 在计划内预占名字
func sortPhase(eff config.EffectiveConfig, files []domain.ImageFile, consumed map[string]struct{}) []domain.SortResult {
	out := make([]domain.SortResult, 0, len(files))

	// 每个日目录的占名状态只读一次，整个阶段内共享。
	states := map[string]planner.DirState{}

	for i := range files {
		src := files[i].AbsPath
		if _, ok := consumed[src]; ok {
			continue
		}

		sr := domain.SortResult{Src: src}

		t, _, err := photodate.Resolve(src)
		if err != nil {
			sr.Status = domain.FileStatusSkipped
			if errors.Is(err, os.ErrNotExist) {
				sr.ErrorCode = domain.ErrCodeVanished
				sr.ErrorMsg = fmt.Sprintf("文件已不存在，跳过归档：%v", err)
			} else {
				sr.ErrorCode = domain.ErrCodeDateUnknown
				sr.ErrorMsg = fmt.Sprintf("无法确定照片日期：%v", err)
			}
			out = append(out, sr)
			continue
		}

		dayDir := filepath.Join(eff.Dest,
			fmt.Sprintf("%04d", t.Year()),
			fmt.Sprintf("%02d", int(t.Month())),
			fmt.Sprintf("%02d", t.Day()),
		)

		st, ok := states[dayDir]
		if !ok {
			if eff.Apply {
				if err := fsx.EnsureDir(dayDir); err != nil {
					sr.Status = domain.FileStatusFailed
					if fsx.IsPathTypeConflict(err) {
						sr.ErrorCode = domain.ErrCodeTargetConflict
					} else {
						sr.ErrorCode = domain.ErrCodeIOFailed
					}
					sr.ErrorMsg = err.Error()
					out = append(out, sr)
					continue
				}
			}
			read, err := planner.ReadDirState(dayDir)
			if err != nil {
				sr.Status = domain.FileStatusFailed
				sr.ErrorCode = domain.ErrCodeIOFailed
				sr.ErrorMsg = err.Error()
				out = append(out, sr)
				continue
			}
			st = read
			states[dayDir] = st
		}

		p := planner.PlanSort(src, st)
		sr.Dst = p.DstAbs

		if p.Already {
			sr.Status = domain.FileStatusAlreadySorted
			out = append(out, sr)
			continue
		}

		name := filepath.Base(p.DstAbs)

		if !eff.Apply {
			st.Claim(name)
			sr.Status = domain.FileStatusPlanned
			out = append(out, sr)
			continue
		}

		if err := fsx.Rename(src, p.DstAbs); err != nil {
			sr.Status = domain.FileStatusFailed
			sr.ErrorCode = domain.ErrCodeMoveFailed
			sr.ErrorMsg = err.Error()
			out = append(out, sr)
			continue
		}
		st.Claim(name)
		sr.Status = domain.FileStatusMoved
		out = append(out, sr)
	}

	return out
}

func finish(rr domain.RunReport) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}
