package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/admi-n/bytecode-excavator/src/internal"
	"github.com/admi-n/bytecode-excavator/src/internal/query"
)

// CLIConfig 保存解析好的 CLI 选项
type CLIConfig struct {
	Client     string  // 节点客户端标识，例如 geth
	Port       int     // 节点 RPC 端口
	BlockStart uint64  // 起始区块（包含）
	BlockEnd   *uint64 // 结束区块（包含），为空表示扫描开始时的链头

	Query     string // 十六进制片段
	QueryFile string // 包含十六进制片段的文件

	SearchCreation bool
	SearchRuntime  bool
	BalanceOnly    bool

	OutputFile string // JSON 结果文件

	Status  bool
	Verbose bool
	Summary bool
	NoColor bool

	ConfigPath string // settings.yaml 路径
	ReportDir  string // markdown 报告输出目录
	Archive    bool   // 命中记录同步写入数据库
	Proxy      string // HTTP 代理，例如 http://127.0.0.1:7897
}

// Validate 检查 CLIConfig 的必需/一致性输入。
func (c *CLIConfig) Validate() error {
	hasQuery := c.Query != ""
	hasFile := c.QueryFile != ""
	if hasQuery == hasFile {
		return errors.New("exactly one of --query or --query-file is required")
	}
	if hasQuery && query.Compile(c.Query).Empty() {
		return errors.New("--query must contain at least one hex character after the 0x prefix")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("--port must be between 1 and 65535, got %d", c.Port)
	}
	if c.BlockEnd != nil && c.BlockStart > *c.BlockEnd {
		return fmt.Errorf("--block-start (%d) must be <= --block-end (%d)", c.BlockStart, *c.BlockEnd)
	}
	if strings.TrimSpace(c.Client) == "" {
		c.Client = "geth"
	}
	// 两个目标都没指定时默认搜索 runtime 字节码
	if !c.SearchCreation && !c.SearchRuntime {
		c.SearchRuntime = true
	}
	return nil
}

// Parameters 生成扫描参数，queryText 为最终的查询内容（文件模式下为文件内容）
func (c *CLIConfig) Parameters(queryText string) internal.SearchParameters {
	params := internal.SearchParameters{
		Client:         c.Client,
		Port:           c.Port,
		BlockStart:     c.BlockStart,
		Query:          queryText,
		QueryFile:      c.QueryFile,
		SearchCreation: c.SearchCreation,
		SearchRuntime:  c.SearchRuntime,
		BalanceOnly:    c.BalanceOnly,
		OutputFile:     c.OutputFile,
		Status:         c.Status,
		Verbose:        c.Verbose,
		Summary:        c.Summary,
	}
	if c.BlockEnd != nil {
		end := *c.BlockEnd
		params.BlockEnd = &end
	}
	return params
}

// NewRootCommand 创建 excavator 根命令
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := &CLIConfig{}
	var blockEnd uint64

	root := &cobra.Command{
		Use:   "excavator",
		Short: "在区块区间内搜索包含指定字节码片段的合约",
		Long: "Bytecode Excavator 逐个区块遍历合约创建交易，在创建数据或部署后的 runtime 字节码中搜索十六进制片段，\n" +
			"可以只保留仍有余额的合约，并把命中记录写入 JSON 结果文件。",
		Example: "  excavator -p 8545 -s 1000000 -e 1000100 -q 6080604052 -o matches.json --summary\n" +
			"  excavator -c erigon -p 8545 -s 17000000 -f selector.txt --search-creation -b",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("block-end") {
				cfg.BlockEnd = &blockEnd
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return Execute(cmd.Context(), cfg, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.Flags()
	flags.StringVarP(&cfg.Client, "client", "c", "geth", "节点客户端标识，对应 settings.yaml 中的 clients.<id>")
	flags.IntVarP(&cfg.Port, "port", "p", 0, "节点 RPC 端口（必填）")
	flags.Uint64VarP(&cfg.BlockStart, "block-start", "s", 0, "起始区块（必填）")
	flags.Uint64VarP(&blockEnd, "block-end", "e", 0, "结束区块，默认为扫描开始时的链头")
	flags.StringVarP(&cfg.Query, "query", "q", "", "要搜索的十六进制片段，可带 0x 前缀")
	flags.StringVarP(&cfg.QueryFile, "query-file", "f", "", "从文件读取要搜索的十六进制片段")
	flags.BoolVar(&cfg.SearchCreation, "search-creation", false, "在合约创建数据中搜索")
	flags.BoolVar(&cfg.SearchRuntime, "search-runtime", false, "在 runtime 字节码中搜索（两个目标都未指定时默认开启）")
	flags.BoolVarP(&cfg.BalanceOnly, "balance-only", "b", false, "只保留当前余额大于 0 的合约")
	flags.StringVarP(&cfg.OutputFile, "output-file", "o", "", "命中记录写入的 JSON 文件（会被覆盖）")
	flags.BoolVar(&cfg.Status, "status", false, "打印每个区块的扫描进度")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "打印每笔交易")
	flags.BoolVar(&cfg.Summary, "summary", false, "扫描结束后打印统计和命中列表")
	flags.BoolVar(&cfg.NoColor, "no-color", false, "关闭彩色输出")
	flags.StringVar(&cfg.ConfigPath, "config", "", "配置文件路径，默认 config/settings.yaml")
	flags.StringVar(&cfg.ReportDir, "report-dir", "", "扫描结束后在该目录生成 markdown 报告")
	flags.BoolVar(&cfg.Archive, "archive", false, "命中记录同步写入 settings.yaml 中配置的数据库")
	flags.StringVar(&cfg.Proxy, "proxy", "", "可选 HTTP 代理，例如 http://127.0.0.1:7897")

	root.MarkFlagsMutuallyExclusive("query", "query-file")
	_ = root.MarkFlagRequired("port")
	_ = root.MarkFlagRequired("block-start")

	return root
}

// Run 解析命令行并执行扫描，收到 Ctrl+C 时取消扫描。
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// PrintFatal 将错误打印到 stderr 并以非零代码退出。
func PrintFatal(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "错误:", err)
	os.Exit(1)
}
