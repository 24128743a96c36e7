package report

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/admi-n/bytecode-excavator/src/internal"
	"github.com/admi-n/bytecode-excavator/src/internal/report/renderers"
)

// Report 表示完整的扫描报告
type Report struct {
	Query    string
	Targets  []string // creation / runtime
	Balance  bool     // 是否只保留有余额的合约
	ScanTime time.Time
	Summary  internal.ScanSummary
	Results  []internal.MatchRecord
}

// Generator 报告生成器接口
type Generator interface {
	Generate(report *Report) (string, error)
}

// MarkdownGenerator markdown格式报告生成器
type MarkdownGenerator struct {
	renderer *renderers.MarkdownRenderer
}

// NewMarkdownGenerator 创建markdown报告生成器
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{renderer: renderers.NewMarkdownRenderer()}
}

// Generate 生成markdown格式报告
func (g *MarkdownGenerator) Generate(report *Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("report is nil")
	}
	var result strings.Builder

	// 报告头部
	result.WriteString("# Bytecode Excavator 扫描报告\n\n")
	result.WriteString(fmt.Sprintf("**查询**: `%s`\n", report.Query))
	result.WriteString(fmt.Sprintf("**搜索目标**: %s\n", strings.Join(report.Targets, ", ")))
	result.WriteString(fmt.Sprintf("**只看有余额合约**: %t\n", report.Balance))
	result.WriteString(fmt.Sprintf("**扫描时间**: %s\n\n", report.ScanTime.Format("2006-01-02 15:04:05")))

	// 扫描统计
	s := report.Summary
	result.WriteString("## 扫描统计\n\n")
	result.WriteString(fmt.Sprintf("- **区块范围**: %s\n", s.Range))
	result.WriteString(fmt.Sprintf("- **扫描区块**: %d (不可用 %d)\n", s.BlocksScanned, s.BlocksUnavailable))
	result.WriteString(fmt.Sprintf("- **合约创建**: %d\n", s.Creations))
	result.WriteString(fmt.Sprintf("- **命中合约**: %d\n", len(report.Results)))
	result.WriteString(fmt.Sprintf("- **命中合约总余额**: %s wei\n\n", totalBalance(report.Results)))

	// 详细结果
	result.WriteString("## 详细结果\n\n")
	if len(report.Results) == 0 {
		result.WriteString("没有命中的合约\n")
	}

	for i, rec := range report.Results {
		result.WriteString(g.renderer.RenderMatch(renderers.MatchView{
			ContractAddress:  rec.ContractAddress,
			OwnerAddress:     rec.OwnerAddress,
			TransactionHash:  rec.TransactionHash,
			BlockNumber:      rec.BlockNumber,
			TransactionNonce: rec.TransactionNonce,
			TransactionValue: rec.TransactionValue,
			ContractBalance:  rec.ContractBalance,
			TransactionData:  rec.TransactionData,
			ContractBytecode: rec.ContractBytecode,
		}))

		// 如果不是最后一个结果，添加分隔线
		if i < len(report.Results)-1 {
			result.WriteString("---\n\n")
		}
	}

	return result.String(), nil
}

// totalBalance 十进制字符串求和，无法解析的余额忽略
func totalBalance(recs []internal.MatchRecord) string {
	total := new(big.Int)
	for _, rec := range recs {
		if v, ok := new(big.Int).SetString(rec.ContractBalance, 10); ok {
			total.Add(total, v)
		}
	}
	return total.String()
}
