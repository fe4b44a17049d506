package app

import (
	"os"
	"sort"
	"sync"

	"github.com/Olivier619/PhotoOrganizer/internal/domain"
)

// DigestFunc 为单个文件计算内容摘要；ok=false 表示不可读，
// 该文件必须退出重复比较（而不是让整个批次失败）。
type DigestFunc func(f domain.ImageFile) (digest string, ok bool)

// DedupeStats 是重复检测阶段的过程计数（只进报告/进度，不影响语义）。
type DedupeStats struct {
	Candidates int // 进入摘要阶段的文件数（同尺寸桶 >= 2 的成员）
	Hashed     int // 摘要成功的文件数
	Unreadable int // 摘要失败被排除的文件数
	Vanished   int // stat 失败（已消失/不可访问）被排除的文件数
}

// FindDuplicates 用“先按大小、再按摘要”的两阶段算法找出字节级重复组。
//
// - 检测时重新 stat：扫描到现在之间文件可能被外部改动/删除
// - 大小唯一的桶直接丢弃，不读内容
// - 摘要计算可并发（workers），但分组严格按输入下标顺序组装，结果确定
// - 组内顺序保留遍历顺序；返回的组按 first-seen（首文件下标）排序
//
// 任何单文件错误都只降级为“该文件退出候选”，永不致命。
func FindDuplicates(files []domain.ImageFile, digest DigestFunc, workers int) ([]domain.DuplicateGroup, DedupeStats) {
	var st DedupeStats

	fresh := make([]domain.ImageFile, len(files))
	bySize := map[int64][]int{}
	sizeOrder := make([]int64, 0, len(files))
	for i := range files {
		fi, err := os.Stat(files[i].AbsPath)
		if err != nil {
			st.Vanished++
			continue
		}
		f := files[i]
		f.Size = fi.Size()
		f.ModUnix = fi.ModTime().Unix()
		fresh[i] = f

		if _, ok := bySize[f.Size]; !ok {
			sizeOrder = append(sizeOrder, f.Size)
		}
		bySize[f.Size] = append(bySize[f.Size], i)
	}

	// 大小唯一的文件不可能有字节级重复，无需比较。
	candIdx := make([]int, 0, len(files))
	for _, size := range sizeOrder {
		if len(bySize[size]) < 2 {
			continue
		}
		candIdx = append(candIdx, bySize[size]...)
	}
	st.Candidates = len(candIdx)

	// 摘要阶段：worker pool 并发计算；结果按文件下标写入，组装与 map 遍历顺序无关。
	digests := make([]string, len(files))
	oks := make([]bool, len(files))

	if workers < 1 {
		workers = 1
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				digests[i], oks[i] = digest(fresh[i])
			}
		}()
	}
	for _, i := range candIdx {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	groups := make([]domain.DuplicateGroup, 0, 16)
	for _, size := range sizeOrder {
		idxs := bySize[size]
		if len(idxs) < 2 {
			continue
		}

		byDigest := map[string][]int{}
		digestOrder := make([]string, 0, len(idxs))
		for _, i := range idxs {
			if !oks[i] {
				st.Unreadable++
				continue
			}
			st.Hashed++
			d := digests[i]
			if _, ok := byDigest[d]; !ok {
				digestOrder = append(digestOrder, d)
			}
			byDigest[d] = append(byDigest[d], i)
		}

		for _, d := range digestOrder {
			g := byDigest[d]
			if len(g) < 2 {
				continue
			}
			groups = append(groups, domain.DuplicateGroup{Digest: d, Size: size, FileIdx: g})
		}
	}

	sort.SliceStable(groups, func(a, b int) bool { return groups[a].FileIdx[0] < groups[b].FileIdx[0] })
	return groups, st
}
