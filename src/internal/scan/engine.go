package scan

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/admi-n/bytecode-excavator/src/internal"
	"github.com/admi-n/bytecode-excavator/src/internal/query"
	"github.com/admi-n/bytecode-excavator/src/internal/rpc"
	"github.com/admi-n/bytecode-excavator/src/internal/store"
)

// Reporter 接收扫描过程中的事件，只做通知，不影响扫描流程
type Reporter interface {
	BlockStarted(height uint64)
	BlockUnavailable(height uint64)
	TransactionSeen(tx *rpc.Transaction)
	PayloadUnavailable(kind internal.PayloadKind, txHash common.Hash)
	MatchFound(rec *internal.MatchRecord)
	ScanComplete(summary internal.ScanSummary)
}

// Engine 顺序扫描区块区间内的合约创建交易
type Engine struct {
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewEngine 创建扫描引擎
func NewEngine(logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{logger: logger, now: time.Now}
}

// run 单次扫描的状态，扫描结束即丢弃
type run struct {
	*Engine
	params   internal.SearchParameters
	query    query.Query
	client   rpc.Client
	sink     store.Sink
	reporter Reporter
	summary  internal.ScanSummary
}

// Run 扫描 params 指定的区块区间。params.Query 必须已经是查询内容，
// 查询文件由调用方先用 query.Load 读出。
//
// BlockEnd 为空时在开始前向节点查询一次链头高度，之后不再更新。
// 区块、交易、收据取不到或 payload 为空只会上报事件并继续；
// 其余节点错误与写入错误会中止扫描，返回已完成部分的统计和错误。
// sink 为 nil 表示不持久化，reporter 为 nil 表示不上报。
func (e *Engine) Run(ctx context.Context, params internal.SearchParameters, client rpc.Client, sink store.Sink, reporter Reporter) (internal.ScanSummary, error) {
	if reporter == nil {
		reporter = nopReporter{}
	}
	r := &run{
		Engine:   e,
		params:   params,
		query:    query.Compile(params.Query),
		client:   client,
		sink:     sink,
		reporter: reporter,
	}
	if !params.SearchCreation && !params.SearchRuntime {
		r.params.SearchRuntime = true
	}

	start := e.now()
	err := r.walk(ctx)
	r.summary.Elapsed = e.now().Sub(start)

	if err != nil {
		return r.summary, err
	}
	reporter.ScanComplete(r.summary)
	return r.summary, nil
}

func (r *run) walk(ctx context.Context) error {
	end, err := r.resolveEnd(ctx)
	if err != nil {
		return err
	}
	r.summary.Range = internal.BlockRange{Start: r.params.BlockStart, End: end}
	if end < r.params.BlockStart {
		return fmt.Errorf("block start %d is after block end %d", r.params.BlockStart, end)
	}

	r.logger.WithFields(logrus.Fields{
		"range":    r.summary.Range.String(),
		"query":    r.query.String(),
		"creation": r.params.SearchCreation,
		"runtime":  r.params.SearchRuntime,
		"balance":  r.params.BalanceOnly,
	}).Info("starting scan")

	for height := r.params.BlockStart; ; height++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.scanBlock(ctx, height); err != nil {
			return err
		}
		r.summary.BlocksScanned++
		if height == end {
			break
		}
	}
	return nil
}

func (r *run) resolveEnd(ctx context.Context) (uint64, error) {
	if r.params.BlockEnd != nil {
		return *r.params.BlockEnd, nil
	}
	head, err := r.client.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("获取当前区块高度失败: %w", err)
	}
	r.logger.WithField("head", head).Debug("resolved block end to chain head")
	return head, nil
}

func (r *run) scanBlock(ctx context.Context, height uint64) error {
	r.reporter.BlockStarted(height)

	block, err := r.client.Block(ctx, height)
	if errors.Is(err, rpc.ErrNotFound) {
		r.logger.WithField("block", height).Warn("block unavailable")
		r.summary.BlocksUnavailable++
		r.reporter.BlockUnavailable(height)
		return nil
	}
	if err != nil {
		return fmt.Errorf("获取区块 %d 失败: %w", height, err)
	}

	for _, txHash := range block.Transactions {
		if err := r.scanTransaction(ctx, height, txHash); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) scanTransaction(ctx context.Context, height uint64, txHash common.Hash) error {
	log := r.logger.WithFields(logrus.Fields{"block": height, "tx": txHash.Hex()})

	tx, err := r.client.Transaction(ctx, txHash)
	if errors.Is(err, rpc.ErrNotFound) {
		log.Warn("transaction unavailable")
		r.reporter.PayloadUnavailable(internal.PayloadTransaction, txHash)
		return nil
	}
	if err != nil {
		return fmt.Errorf("获取交易 %s 失败: %w", txHash.Hex(), err)
	}
	r.summary.Transactions++
	if r.params.Verbose {
		r.reporter.TransactionSeen(tx)
	}

	if !tx.IsCreation() {
		return nil
	}
	r.summary.Creations++

	receipt, err := r.client.Receipt(ctx, txHash)
	if errors.Is(err, rpc.ErrNotFound) {
		log.Warn("receipt unavailable")
		r.reporter.PayloadUnavailable(internal.PayloadReceipt, txHash)
		return nil
	}
	if err != nil {
		return fmt.Errorf("获取交易收据 %s 失败: %w", txHash.Hex(), err)
	}
	if !receipt.HasContract() {
		log.Warn("receipt has no contract address")
		r.reporter.PayloadUnavailable(internal.PayloadReceipt, txHash)
		return nil
	}
	contract := receipt.ContractAddress

	// 余额与字节码总是先取，再做余额过滤
	balance, err := r.client.Balance(ctx, contract)
	if err != nil {
		return fmt.Errorf("获取合约 %s 余额失败: %w", contract.Hex(), err)
	}
	if balance == nil {
		balance = new(big.Int)
	}
	code, err := r.client.Code(ctx, contract)
	if err != nil {
		return fmt.Errorf("获取合约 %s 字节码失败: %w", contract.Hex(), err)
	}

	if r.params.BalanceOnly && balance.Sign() == 0 {
		return nil
	}
	if !r.matches(txHash, tx.Input, code) {
		return nil
	}

	rec := &internal.MatchRecord{
		BlockNumber:      receipt.BlockNumber,
		TransactionHash:  txHash.Hex(),
		ContractAddress:  contract.Hex(),
		OwnerAddress:     tx.From.Hex(),
		TransactionNonce: tx.Nonce,
		TransactionValue: bigString(tx.Value),
		ContractBalance:  balance.String(),
		TransactionData:  tx.Input,
		ContractBytecode: code,
	}
	r.summary.Matches++
	log.WithField("contract", rec.ContractAddress).Info("match found")
	r.reporter.MatchFound(rec)

	if r.sink != nil {
		if err := r.sink.Append(ctx, rec); err != nil {
			return fmt.Errorf("保存命中记录 %s 失败: %w", rec.ContractAddress, err)
		}
	}
	return nil
}

// matches 任一启用的目标命中即算命中
func (r *run) matches(txHash common.Hash, input, code string) bool {
	matched := false
	if r.params.SearchCreation {
		ok, available := r.query.Match(input)
		if !available {
			r.reporter.PayloadUnavailable(internal.PayloadCreation, txHash)
		}
		matched = matched || ok
	}
	if r.params.SearchRuntime {
		ok, available := r.query.Match(code)
		if !available {
			r.reporter.PayloadUnavailable(internal.PayloadRuntime, txHash)
		}
		matched = matched || ok
	}
	return matched
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

type nopReporter struct{}

func (nopReporter) BlockStarted(uint64)                                  {}
func (nopReporter) BlockUnavailable(uint64)                              {}
func (nopReporter) TransactionSeen(*rpc.Transaction)                     {}
func (nopReporter) PayloadUnavailable(internal.PayloadKind, common.Hash) {}
func (nopReporter) MatchFound(*internal.MatchRecord)                     {}
func (nopReporter) ScanComplete(internal.ScanSummary)                    {}
