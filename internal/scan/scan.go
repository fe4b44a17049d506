package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Olivier619/PhotoOrganizer/internal/domain"
)

// ScanImages 依次扫描 sources 下的图片文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - excludeDirs：归档根目录与重复文件目录必须在内（由调用方传入），
//   相对路径视为相对当前 source；绝对路径按绝对路径处理
// - 只认图片扩展名（大小写不敏感）
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
// 返回顺序即“遍历顺序”：sources 按入参顺序，source 内按 RelPath 字典序——
// 下游 original 的 first-seen 判定依赖该顺序稳定。
func ScanImages(sources []string, excludeDirs []string) ([]domain.ImageFile, error) {
	files := make([]domain.ImageFile, 0, 128)

	for _, src := range sources {
		part, err := scanOne(filepath.Clean(src), excludeDirs)
		if err != nil {
			return nil, err
		}
		files = append(files, part...)
	}
	return files, nil
}

func scanOne(root string, excludeDirs []string) ([]domain.ImageFile, error) {
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.ImageFile, 0, 128)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		// 统一的排除判断：目录用 SkipDir，文件则直接跳过。
		if isExcluded(path, excluded) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if !isImageExt(ext) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		files = append(files, domain.ImageFile{
			AbsPath: path,
			RelPath: rel,
			Base:    strings.TrimSuffix(name, filepath.Ext(name)),
			Ext:     ext,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff":
		return true
	default:
		return false
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		// x 是相对路径：相对 root。
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	// 排除列表排序后，isExcluded 的行为更可预测（且便于测试）。
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, base+sep)
}
