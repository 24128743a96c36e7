package internal

import (
	"fmt"
	"time"
)

// SearchParameters 一次扫描的全部输入，构造后不再修改
type SearchParameters struct {
	Client     string // 节点客户端标识，例如 geth
	Port       int    // RPC 端口
	BlockStart uint64
	BlockEnd   *uint64 // nil 表示扫描开始时取链头高度

	Query     string // 原始查询串，与 QueryFile 二选一
	QueryFile string

	SearchCreation bool // 匹配创建交易的 input data
	SearchRuntime  bool // 匹配部署后的 runtime bytecode
	BalanceOnly    bool // 只保留余额非零的合约

	OutputFile string

	// 以下只影响输出，不影响扫描语义
	Status  bool
	Verbose bool
	Summary bool
}

// BlockRange 闭区间 [Start, End]
type BlockRange struct {
	Start uint64
	End   uint64
}

func (b BlockRange) String() string {
	return fmt.Sprintf("%d-%d", b.Start, b.End)
}

// Len 区间内的区块数量
func (b BlockRange) Len() uint64 {
	if b.End < b.Start {
		return 0
	}
	return b.End - b.Start + 1
}

// MatchRecord 一条命中记录。value / balance 用十进制字符串保存，避免精度丢失。
type MatchRecord struct {
	BlockNumber      uint64 `json:"blockNumber" db:"block_number"`
	TransactionHash  string `json:"transactionHash" db:"transaction_hash"`
	ContractAddress  string `json:"contractAddress" db:"contract_address"`
	OwnerAddress     string `json:"ownerAddress" db:"owner_address"`
	TransactionNonce uint64 `json:"transactionNonce" db:"transaction_nonce"`
	TransactionValue string `json:"transactionValue" db:"transaction_value"`
	ContractBalance  string `json:"contractBalance" db:"contract_balance"`
	TransactionData  string `json:"transactionData" db:"transaction_data"`
	ContractBytecode string `json:"contractBytecode" db:"contract_bytecode"`
}

// ScanSummary 扫描结束（或中止）时的统计
type ScanSummary struct {
	Range             BlockRange
	BlocksScanned     uint64 // 已遍历的区块数，包括取不到的区块
	BlocksUnavailable uint64
	Transactions      uint64
	Creations         uint64
	Matches           uint64
	Elapsed           time.Duration
}

// PayloadKind 标识缺失的数据来源
type PayloadKind int

const (
	PayloadCreation    PayloadKind = iota // 创建交易的 input data
	PayloadRuntime                        // 链上 runtime bytecode
	PayloadTransaction                    // 交易本身取不到
	PayloadReceipt                        // 收据取不到或没有合约地址
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadCreation:
		return "creation"
	case PayloadRuntime:
		return "runtime"
	case PayloadTransaction:
		return "transaction"
	case PayloadReceipt:
		return "receipt"
	default:
		return fmt.Sprintf("PayloadKind(%d)", int(k))
	}
}
