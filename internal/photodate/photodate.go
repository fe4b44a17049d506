package photodate

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// EXIF 日期标签的固定格式。
const exifLayout = "2006:01:02 15:04:05"

// Source 标记最终时间戳的来源，便于报告与排查。
type Source string

const (
	SourceExifOriginal  Source = "exif_original"
	SourceExifDigitized Source = "exif_digitized"
	SourceModTime       Source = "mtime"
)

// Resolve 为单个文件解析拍摄时间。
//
// 顺序（硬约束）：
// 1) EXIF DateTimeOriginal
// 2) EXIF DateTimeDigitized
// 3) 文件系统修改时间
//
// EXIF 阶段的任何失败（打开失败、无 EXIF、格式不支持、标签值无法解析）
// 一律静默回落到下一级，不向调用方传播。只有连修改时间都读不到
// （例如文件已消失）才返回错误——那是调用方需要计数的异常，不是致命错误。
func Resolve(path string) (time.Time, Source, error) {
	if ts, src, ok := exifDate(path); ok {
		return ts, src, nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("无法读取修改时间：%w", err)
	}
	return fi.ModTime(), SourceModTime, nil
}

func exifDate(path string) (time.Time, Source, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, "", false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// 无 EXIF / 非支持格式 / 解码错误：统一视为“没有元数据”。
		return time.Time{}, "", false
	}

	if ts, ok := tagTime(x, exif.DateTimeOriginal); ok {
		return ts, SourceExifOriginal, true
	}
	if ts, ok := tagTime(x, exif.DateTimeDigitized); ok {
		return ts, SourceExifDigitized, true
	}
	return time.Time{}, "", false
}

func tagTime(x *exif.Exif, name exif.FieldName) (time.Time, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return time.Time{}, false
	}
	s, err := tag.StringVal()
	if err != nil {
		return time.Time{}, false
	}
	// 有些写入方会在值末尾带 NUL/空白。
	s = strings.TrimRight(strings.TrimSpace(s), "\x00")

	ts, err := time.ParseInLocation(exifLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
