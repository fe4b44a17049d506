package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 photoorg.json。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingSources 表示无参运行但配置文件缺少 sources 字段。
	ErrCodeMissingSources = "config_missing_sources"
	// ErrCodeNoInput 表示合并后没有任何有效的输入目录。
	ErrCodeNoInput = "no_input"
)

const (
	// DefaultPolicy 是重复处理策略的最终默认值。
	DefaultPolicy = "list"
	// DefaultConcurrency 是摘要并发的内置默认值（当配置未指定时）。
	DefaultConcurrency = 4

	// DefaultDestName / DefaultDuplicatesName 是 cwd 下的默认输出目录名。
	DefaultDestName       = "sorted"
	DefaultDuplicatesName = "duplicates"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Sources []string

	Dest    string
	DestSet bool

	DuplicatesDir    string
	DuplicatesDirSet bool

	Policy    string
	PolicySet bool

	Apply    bool
	ApplySet bool

	Yes    bool
	YesSet bool
}

// FileConfig 对应 photoorg.json 的解析结构。
// 未知字段容忍（不报错），给配置格式留演进空间。
type FileConfig struct {
	Sources         []string `json:"sources"`
	Dest            string   `json:"dest"`
	DuplicatesDir   string   `json:"duplicates_dir"`
	DuplicatePolicy string   `json:"duplicate_policy"`
	Apply           *bool    `json:"apply"`
	AssumeYes       bool     `json:"assume_yes"`
	Concurrency     int      `json:"concurrency"`
	ExcludeDirs     []string `json:"exclude_dirs"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置
// （实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Sources       []string
	Dest          string
	DuplicatesDir string

	Policy    string
	Apply     bool
	AssumeYes bool

	Concurrency int
	ExcludeDirs []string

	// InvalidSources 是被丢弃的无效输入目录（不存在或不是目录），供上层告警。
	InvalidSources []string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingSources:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 sources", e.Code, e.Path)
	case ErrCodeNoInput:
		return fmt.Sprintf("%s：没有任何有效的输入目录", e.Code)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供了 source：<cwd>/photoorg.json 可选
// 2) CLI 未提供 source：<cwd>/photoorg.json 必选，且其中必须包含 sources
//
// 覆盖优先级（固定）：
// - sources：CLI > config
// - dest / duplicates_dir / policy / apply / yes：CLI > config > 默认
// - 其他字段：仅由 config 控制（CLI 不暴露）
//
// 输入目录在此处校验：不存在/不是目录的 source 被丢弃并记入
// InvalidSources；一个都不剩时返回 no_input（任何改动发生之前）。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, "photoorg.json")
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	if len(cli.Sources) == 0 {
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		if len(fc.Sources) == 0 {
			return EffectiveConfig{}, &Error{Code: ErrCodeMissingSources, Path: cfgPath}
		}
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	rawSources := cli.Sources
	if len(rawSources) == 0 {
		rawSources = fc.Sources
	}

	sources := make([]string, 0, len(rawSources))
	invalid := make([]string, 0)
	for _, s := range rawSources {
		abs := absCleanFrom(cwdAbs, s)
		if abs == "" {
			continue
		}
		fi, err := os.Stat(abs)
		if err != nil || !fi.IsDir() {
			invalid = append(invalid, abs)
			continue
		}
		sources = append(sources, abs)
	}
	if len(sources) == 0 {
		return EffectiveConfig{}, &Error{Code: ErrCodeNoInput, Path: cfgPath}
	}

	// dest / duplicates_dir：CLI > config > cwd 下默认目录。
	dest := filepath.Join(cwdAbs, DefaultDestName)
	if cli.DestSet {
		dest = absCleanFrom(cwdAbs, cli.Dest)
	} else if strings.TrimSpace(fc.Dest) != "" {
		dest = absCleanFrom(cwdAbs, fc.Dest)
	}
	if dest == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("dest 不能为空")}
	}

	dupDir := filepath.Join(cwdAbs, DefaultDuplicatesName)
	if cli.DuplicatesDirSet {
		dupDir = absCleanFrom(cwdAbs, cli.DuplicatesDir)
	} else if strings.TrimSpace(fc.DuplicatesDir) != "" {
		dupDir = absCleanFrom(cwdAbs, fc.DuplicatesDir)
	}
	if dupDir == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf("duplicates_dir 不能为空")}
	}

	// policy：CLI > config > 默认。
	policy := DefaultPolicy
	if cli.PolicySet {
		policy = cli.Policy
	} else if strings.TrimSpace(fc.DuplicatePolicy) != "" {
		policy = fc.DuplicatePolicy
	}
	if err := validatePolicy(policy); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	// apply：CLI > config > 默认 false。
	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	assumeYes := fc.AssumeYes
	if cli.YesSet {
		assumeYes = cli.Yes
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	// 范围建议 [1, 32]；超出截断。
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > 32 {
		concurrency = 32
	}

	return EffectiveConfig{
		Sources:        sources,
		Dest:           dest,
		DuplicatesDir:  dupDir,
		Policy:         policy,
		Apply:          apply,
		AssumeYes:      assumeYes,
		Concurrency:    concurrency,
		ExcludeDirs:    append([]string(nil), fc.ExcludeDirs...),
		InvalidSources: invalid,
	}, nil
}

func validatePolicy(p string) error {
	switch p {
	case "list", "relocate", "delete":
		return nil
	case "":
		return fmt.Errorf("duplicate_policy 不能为空")
	default:
		return fmt.Errorf("duplicate_policy 只能是 list、relocate 或 delete，实际是 %q", p)
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" || p == "." {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
