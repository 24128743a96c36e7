package report

import (
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"github.com/admi-n/bytecode-excavator/src/internal"
	"github.com/admi-n/bytecode-excavator/src/internal/rpc"
)

// ConsoleOptions 控制台输出开关，对应 --status / --verbose / --summary
type ConsoleOptions struct {
	Status  bool
	Verbose bool
	Summary bool
	Color   bool
}

// styles 控制台配色
type styles struct {
	block   *color.Color
	warn    *color.Color
	match   *color.Color
	heading *color.Color
	faint   *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		block:   color.New(color.FgHiBlue),
		warn:    color.New(color.FgYellow),
		match:   color.New(color.Bold, color.FgHiGreen),
		heading: color.New(color.Bold),
		faint:   color.New(color.FgHiBlack),
	}
	if !enabled {
		s.block.DisableColor()
		s.warn.DisableColor()
		s.match.DisableColor()
		s.heading.DisableColor()
		s.faint.DisableColor()
	}
	return s
}

// Console 把扫描事件打印到终端
type Console struct {
	out    io.Writer
	opts   ConsoleOptions
	styles *styles
}

// NewConsole 创建控制台报告器
func NewConsole(out io.Writer, opts ConsoleOptions) *Console {
	return &Console{
		out:    out,
		opts:   opts,
		styles: newStyles(opts.Color),
	}
}

func (c *Console) BlockStarted(height uint64) {
	if !c.opts.Status {
		return
	}
	c.styles.block.Fprintf(c.out, "📦 扫描区块 %d\n", height)
}

func (c *Console) BlockUnavailable(height uint64) {
	c.styles.warn.Fprintf(c.out, "⚠️  区块 %d 不可用（可能已被裁剪），跳过\n", height)
}

func (c *Console) TransactionSeen(tx *rpc.Transaction) {
	if !c.opts.Verbose {
		return
	}
	to := "合约创建"
	if tx.To != nil {
		to = tx.To.Hex()
	}
	c.styles.faint.Fprintf(c.out, "   ↳ %s  %s -> %s  value=%s\n", tx.Hash.Hex(), tx.From.Hex(), to, bigText(tx.Value))
}

func (c *Console) PayloadUnavailable(kind internal.PayloadKind, txHash common.Hash) {
	switch kind {
	case internal.PayloadCreation:
		c.styles.warn.Fprintf(c.out, "⚠️  交易 %s 的创建数据为空，可以改用 --search-runtime 搜索 runtime 字节码\n", txHash.Hex())
	case internal.PayloadRuntime:
		c.styles.warn.Fprintf(c.out, "⚠️  交易 %s 部署的合约没有 runtime 字节码，可以改用 --search-creation 搜索创建数据\n", txHash.Hex())
	default:
		c.styles.warn.Fprintf(c.out, "⚠️  交易 %s 的%s不可用，跳过\n", txHash.Hex(), kindText(kind))
	}
}

func (c *Console) MatchFound(rec *internal.MatchRecord) {
	c.styles.match.Fprintf(c.out, "✅ 发现合约: %s", rec.ContractAddress)
	fmt.Fprintf(c.out, " (区块 %d, 创建者 %s, 余额 %s wei)\n", rec.BlockNumber, rec.OwnerAddress, rec.ContractBalance)
}

func (c *Console) ScanComplete(summary internal.ScanSummary) {
	if !c.opts.Summary {
		return
	}
	fmt.Fprintln(c.out)
	c.styles.heading.Fprintln(c.out, "🎉 扫描完成!")
	fmt.Fprintf(c.out, "   - 区块范围: %s\n", summary.Range)
	fmt.Fprintf(c.out, "   - 扫描区块: %d (不可用 %d)\n", summary.BlocksScanned, summary.BlocksUnavailable)
	fmt.Fprintf(c.out, "   - 交易总数: %d\n", summary.Transactions)
	fmt.Fprintf(c.out, "   - 合约创建: %d\n", summary.Creations)
	fmt.Fprintf(c.out, "   - 命中合约: %d\n", summary.Matches)
	fmt.Fprintf(c.out, "   - 耗时: %s\n", summary.Elapsed.Round(time.Millisecond))
}

// PrintMatches 打印结果文件中的全部命中记录
func (c *Console) PrintMatches(recs []internal.MatchRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(c.out, "没有命中的合约")
		return
	}
	c.styles.heading.Fprintf(c.out, "命中合约 (%d):\n", len(recs))
	fmt.Fprintf(c.out, "%-8s  %-42s  %-42s  %s\n", "区块", "合约地址", "创建者", "余额(wei)")
	fmt.Fprintln(c.out, strings.Repeat("-", 120))
	for _, rec := range recs {
		fmt.Fprintf(c.out, "%-8d  %-42s  %-42s  %s\n", rec.BlockNumber, rec.ContractAddress, rec.OwnerAddress, rec.ContractBalance)
	}
}

func kindText(kind internal.PayloadKind) string {
	switch kind {
	case internal.PayloadTransaction:
		return "交易数据"
	case internal.PayloadReceipt:
		return "收据/合约地址"
	default:
		return kind.String()
	}
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
