package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Olivier619/PhotoOrganizer/internal/infra/fsx"
)

// DirState 描述一个目标目录的现状（只做 ReadDir，不读内容）。
// Names 同时承载本次运行中已分配的目标名：规划阶段先占名，
// 即使还没有真正落盘，同一目录内也不会出现两个相同的目标名。
type DirState struct {
	Dir   string
	Names map[string]struct{}
}

// ReadDirState 读取目录现状。若目录不存在，返回空状态且不报错。
func ReadDirState(dir string) (DirState, error) {
	st := DirState{
		Dir:   filepath.Clean(dir),
		Names: map[string]struct{}{},
	}

	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return DirState{}, err
	}
	for _, e := range entries {
		st.Names[e.Name()] = struct{}{}
	}
	return st, nil
}

// Claim 把一个目标名记入已占用集合。
func (st DirState) Claim(name string) {
	st.Names[name] = struct{}{}
}

// AllocName 在已占用集合内分配不冲突的文件名。
// 冲突时在扩展名前追加数字后缀：photo.jpg -> photo_1.jpg -> photo_2.jpg ...
func AllocName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 1; ; n++ {
		cand := fmt.Sprintf("%s_%d%s", base, n, ext)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}

// SortPlan 是单个文件归档的最小执行计划（只描述 dst；真正移动由上层执行）。
type SortPlan struct {
	DstAbs  string
	Already bool // 目标位置上已是同一底层文件（幂等 no-op）
}

// PlanSort 为 srcAbs 在目标日目录内决定动作。
//
// - 目标名优先用源 basename
// - 名字被占用时，先判断占用者是否就是源文件本身（inode 级身份，
//   而非路径字符串相等）：是则视为已归位，不移动也不改名
// - 否则追加数字后缀直到找到空位
//
// 该函数不做任何写入；确定性：同样的目录状态 + 同样的源必得同样的计划。
func PlanSort(srcAbs string, st DirState) SortPlan {
	name := filepath.Base(srcAbs)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	cand := name
	for n := 1; ; n++ {
		candPath := filepath.Join(st.Dir, cand)
		if _, taken := st.Names[cand]; !taken {
			return SortPlan{DstAbs: candPath}
		}
		// 名字被占用：可能就是源文件自己（已经归位）。
		// 本次运行内先占名而未落盘的条目 stat 不到，自然判否。
		if fsx.SameFile(srcAbs, candPath) {
			return SortPlan{DstAbs: candPath, Already: true}
		}
		cand = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
}
