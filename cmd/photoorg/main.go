package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Olivier619/PhotoOrganizer/internal/app"
	"github.com/Olivier619/PhotoOrganizer/internal/app/run"
	"github.com/Olivier619/PhotoOrganizer/internal/config"
	"github.com/Olivier619/PhotoOrganizer/internal/domain"
	"github.com/Olivier619/PhotoOrganizer/internal/infra/fsx"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Sources:          ra.Sources,
		Dest:             ra.Dest,
		DestSet:          ra.DestSet,
		DuplicatesDir:    ra.DuplicatesDir,
		DuplicatesDirSet: ra.DuplicatesDirSet,
		Policy:           ra.Policy,
		PolicySet:        ra.PolicySet,
		Apply:            ra.Apply,
		ApplySet:         ra.ApplySet,
		Yes:              ra.Yes,
		YesSet:           ra.YesSet,
	})
	if err != nil {
		emitReport(reportForConfigError(ra, err))
		return 1
	}

	for _, s := range eff.InvalidSources {
		fmt.Fprintf(os.Stderr, "警告：忽略无效的输入目录 %q（不存在或不是目录）\n", s)
	}

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(eff, pickConfirmer(eff), obs)

	// apply：必须写入 <dest>/cache/report.json；dry-run 禁止落盘。
	if eff.Apply {
		if err := writeReportFile(eff.Dest, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	if interactive {
		emitLocations(progressW, eff)
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
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

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--dest":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--dest 需要一个值")
			}
			i++
			ra.Dest = args[i]
			ra.DestSet = true
		case strings.HasPrefix(a, "--dest="):
			ra.Dest = strings.TrimPrefix(a, "--dest=")
			ra.DestSet = true
		case a == "--dups-dir":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--dups-dir 需要一个值")
			}
			i++
			ra.DuplicatesDir = args[i]
			ra.DuplicatesDirSet = true
		case strings.HasPrefix(a, "--dups-dir="):
			ra.DuplicatesDir = strings.TrimPrefix(a, "--dups-dir=")
			ra.DuplicatesDirSet = true
		case a == "--dups":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("--dups 需要一个值")
			}
			i++
			ra.Policy = args[i]
			ra.PolicySet = true
		case strings.HasPrefix(a, "--dups="):
			ra.Policy = strings.TrimPrefix(a, "--dups=")
			ra.PolicySet = true
		case a == "--apply":
			ra.Apply = true
			ra.ApplySet = true
		case strings.HasPrefix(a, "--apply="):
			v := strings.TrimPrefix(a, "--apply=")
			switch v {
			case "true":
				ra.Apply = true
			case "false":
				ra.Apply = false
			default:
				return runArgs{}, fmt.Errorf("--apply 只能是 true 或 false，实际是 %q", v)
			}
			ra.ApplySet = true
		case a == "--yes" || a == "-y":
			ra.Yes = true
			ra.YesSet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			ra.Sources = append(ra.Sources, a)
		}
	}

	if ra.PolicySet {
		switch ra.Policy {
		case "list", "relocate", "delete":
			// ok
		case "":
			return runArgs{}, fmt.Errorf("--dups 不能为空")
		default:
			return runArgs{}, fmt.Errorf("--dups 只能是 list、relocate 或 delete，实际是 %q", ra.Policy)
		}
	}

	return ra, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  photoorg run [source ...] [--dest DIR] [--dups list|relocate|delete] [--apply[=true|false]] [--yes]

命令：
  run    扫描、查重并按日期归档照片（默认 dry-run）

使用 "photoorg run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  photoorg run [source ...] [--dest DIR] [--dups-dir DIR] [--dups list|relocate|delete] [--apply[=true|false]] [--yes]

参数：
  source      一个或多个输入目录（未指定则读取 photoorg.json 的 sources）
  --dest      归档根目录（默认 ./sorted）
  --dups-dir  重复文件的集中目录（默认 ./duplicates；仅 relocate 策略使用）
  --dups      重复处理策略：list 只列出 / relocate 移走 / delete 删除（默认 list）
  --apply     执行移动与删除（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply=true
  --yes, -y   删除策略下跳过逐组确认（视为全部同意）
  -h, --help  显示帮助
`)
}

// pickConfirmer 决定删除策略的确认方式：
// --yes/assume_yes 全部同意；交互终端逐组提问；非交互一律拒绝（安全默认）。
func pickConfirmer(eff config.EffectiveConfig) app.Confirmer {
	if eff.AssumeYes {
		return app.ConfirmFunc(func(string) bool { return true })
	}
	if !isTTY(os.Stdin) {
		return app.ConfirmFunc(func(string) bool { return false })
	}

	reader := bufio.NewReader(os.Stdin)
	return app.ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	})
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：scanned=%d groups=%d duplicates=%d relocated=%d deleted=%d sorted=%d already_sorted=%d skipped=%d failed=%d\n",
			rr.Summary.Scanned, rr.Summary.Groups, rr.Summary.Duplicates,
			rr.Summary.Relocated, rr.Summary.Deleted,
			rr.Summary.Sorted, rr.Summary.AlreadySorted,
			rr.Summary.Skipped, rr.Summary.Failed,
		)
		if rr.Summary.Failed > 0 {
			for _, e := range rr.Errors {
				fmt.Fprintf(os.Stderr, "%s: %s\n", e.ErrorCode, e.ErrorMsg)
			}
			for _, g := range rr.Groups {
				for _, f := range g.Files {
					if f.Status == domain.FileStatusFailed {
						fmt.Fprintf(os.Stderr, "%s %s: %s\n", f.Src, f.ErrorCode, f.ErrorMsg)
					}
				}
			}
			for _, f := range rr.Sorted {
				if f.Status == domain.FileStatusFailed {
					fmt.Fprintf(os.Stderr, "%s %s: %s\n", f.Src, f.ErrorCode, f.ErrorMsg)
				}
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：scanned=%d relocated=%d deleted=%d sorted=%d failed=%d\n",
		rr.Summary.Scanned, rr.Summary.Relocated, rr.Summary.Deleted, rr.Summary.Sorted, rr.Summary.Failed,
	)
}

func reportForConfigError(ra runArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Sources:    append([]string{}, ra.Sources...),
		DryRun:     !(ra.ApplySet && ra.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Errors: []domain.RunError{{
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(dest string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Join(dest, "cache"), "report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	// 这两行用于降低“完成后不知道产物在哪”的摩擦，且不影响 stdout JSON 契约。
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Dest, "cache", "report.json"))
	}
	fmt.Fprintf(w, "dest: %s\n", eff.Dest)
}
