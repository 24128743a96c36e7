package rpc

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound 节点上取不到对应数据（区块被裁剪、交易/收据不存在）。
// 属于数据缺失，不是传输错误，不会被重试。
var ErrNotFound = errors.New("not found")

// Client 扫描所需的最小节点能力集合，方便测试时替换
type Client interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	Block(ctx context.Context, height uint64) (*Block, error)
	Transaction(ctx context.Context, hash common.Hash) (*Transaction, error)
	Receipt(ctx context.Context, hash common.Hash) (*Receipt, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	Code(ctx context.Context, addr common.Address) (string, error)
}

// Block 只带交易哈希的区块
type Block struct {
	Number       uint64
	Hash         common.Hash
	Transactions []common.Hash
}

// Transaction 交易中扫描关心的字段
type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address // nil 表示合约创建
	Nonce uint64
	Value *big.Int
	Input string // 0x 前缀的十六进制
}

// IsCreation 目标地址为空即为合约创建交易
func (tx *Transaction) IsCreation() bool {
	return tx.To == nil
}

// Receipt 交易收据
type Receipt struct {
	BlockNumber     uint64
	ContractAddress common.Address // 只有创建交易才会设置
	Status          uint64
}

// HasContract 收据是否带有合约地址
func (r *Receipt) HasContract() bool {
	return r.ContractAddress != (common.Address{})
}
