package renderers

import (
	"fmt"
	"strings"
)

// maxHexPreview 报告中字节码只展示前若干个字符
const maxHexPreview = 256

// MarkdownRenderer markdown渲染器
type MarkdownRenderer struct{}

// NewMarkdownRenderer 创建markdown渲染器
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

// MatchView 渲染一条命中记录所需的字段
type MatchView struct {
	ContractAddress  string
	OwnerAddress     string
	TransactionHash  string
	BlockNumber      uint64
	TransactionNonce uint64
	TransactionValue string
	ContractBalance  string
	TransactionData  string
	ContractBytecode string
}

// RenderMatch 渲染单个命中合约
func (r *MarkdownRenderer) RenderMatch(m MatchView) string {
	var result strings.Builder

	// 合约地址作为一级标题
	result.WriteString(fmt.Sprintf("# 合约地址: %s\n\n", m.ContractAddress))
	result.WriteString(fmt.Sprintf("- **区块**: %d\n", m.BlockNumber))
	result.WriteString(fmt.Sprintf("- **交易**: %s\n", m.TransactionHash))
	result.WriteString(fmt.Sprintf("- **创建者**: %s (nonce %d)\n", m.OwnerAddress, m.TransactionNonce))
	result.WriteString(fmt.Sprintf("- **转入金额**: %s wei\n", m.TransactionValue))
	result.WriteString(fmt.Sprintf("- **当前余额**: %s wei\n\n", m.ContractBalance))

	if m.ContractBytecode != "" && m.ContractBytecode != "0x" {
		result.WriteString("### Runtime 字节码\n\n")
		result.WriteString(fmt.Sprintf("```\n%s\n```\n\n", Truncate(m.ContractBytecode, maxHexPreview)))
	}
	if m.TransactionData != "" && m.TransactionData != "0x" {
		result.WriteString("### 创建数据\n\n")
		result.WriteString(fmt.Sprintf("```\n%s\n```\n\n", Truncate(m.TransactionData, maxHexPreview)))
	}

	return result.String()
}

// Truncate 超过 n 个字符时截断并注明总长度
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d chars)", s[:n], len(s))
}
