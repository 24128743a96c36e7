package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config 节点连接配置
type Config struct {
	Endpoint          string
	Proxy             string
	Timeout           time.Duration
	MaxAttempts       int           // 单次请求最多尝试次数，<=0 按 3 处理
	RetryDelay        time.Duration // 第 n 次重试前等待 n*RetryDelay
	RequestsPerSecond float64       // <=0 表示不限速
	Headers           map[string]string
}

// EthClient 基于 go-ethereum 的 Client 实现，负责重试与限速
type EthClient struct {
	endpoint    string
	rpcClient   *gethrpc.Client
	ethClient   *ethclient.Client
	limiter     *rate.Limiter
	maxAttempts int
	retryDelay  time.Duration
	logger      logrus.FieldLogger
}

var _ Client = (*EthClient)(nil)

// Dial 连接节点。HTTP 端点不会立即建立连接，第一次请求时才会真正访问节点。
func Dial(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*EthClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("rpc endpoint is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	httpClient, err := NewHTTPClient(cfg.Proxy, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	rpcClient, err := gethrpc.DialOptions(ctx, cfg.Endpoint, gethrpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	for hKey, hVal := range cfg.Headers {
		rpcClient.SetHeader(hKey, hVal)
	}

	client := &EthClient{
		endpoint:    cfg.Endpoint,
		rpcClient:   rpcClient,
		ethClient:   ethclient.NewClient(rpcClient),
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger.WithField("rpc", cfg.Endpoint),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return client, nil
}

// Endpoint 返回连接的节点地址
func (c *EthClient) Endpoint() string {
	return c.endpoint
}

// Close 关闭连接
func (c *EthClient) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *EthClient) CurrentHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		height, err = c.ethClient.BlockNumber(ctx)
		return err
	})
	return height, err
}

type rpcBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	Transactions []common.Hash  `json:"transactions"`
}

// Block 按高度获取区块（只含交易哈希），节点返回 null 或历史已裁剪时为 ErrNotFound
func (c *EthClient) Block(ctx context.Context, height uint64) (*Block, error) {
	var raw json.RawMessage
	err := c.call(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(height), false)
	})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, fmt.Errorf("block %d: %w", height, ErrNotFound)
	}

	var b rpcBlock
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("解析区块 %d 失败: %w", height, err)
	}
	return &Block{
		Number:       uint64(b.Number),
		Hash:         b.Hash,
		Transactions: b.Transactions,
	}, nil
}

type rpcTransaction struct {
	Hash  common.Hash    `json:"hash"`
	From  common.Address `json:"from"`
	To    *string        `json:"to"`
	Nonce hexutil.Uint64 `json:"nonce"`
	Value *hexutil.Big   `json:"value"`
	Input hexutil.Bytes  `json:"input"`
}

// Transaction 获取交易。直接读取节点返回的 from 字段，不需要按链 ID 恢复签名者。
func (c *EthClient) Transaction(ctx context.Context, hash common.Hash) (*Transaction, error) {
	var raw json.RawMessage
	err := c.call(ctx, "eth_getTransactionByHash", func(ctx context.Context) error {
		return c.rpcClient.CallContext(ctx, &raw, "eth_getTransactionByHash", hash)
	})
	if err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, fmt.Errorf("transaction %s: %w", hash.Hex(), ErrNotFound)
	}

	var rt rpcTransaction
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("解析交易 %s 失败: %w", hash.Hex(), err)
	}

	tx := &Transaction{
		Hash:  rt.Hash,
		From:  rt.From,
		Nonce: uint64(rt.Nonce),
		Value: new(big.Int),
		Input: hexutil.Encode(rt.Input),
	}
	if rt.Value != nil {
		tx.Value = rt.Value.ToInt()
	}
	if rt.To != nil {
		to := strings.TrimSpace(*rt.To)
		if to != "" && to != "0x" {
			addr := common.HexToAddress(to)
			tx.To = &addr
		}
	}
	return tx, nil
}

func (c *EthClient) Receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var receipt *Receipt
	err := c.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		r, err := c.ethClient.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = &Receipt{
			ContractAddress: r.ContractAddress,
			Status:          r.Status,
		}
		if r.BlockNumber != nil {
			receipt.BlockNumber = r.BlockNumber.Uint64()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Balance 获取地址在最新区块的余额（wei）
func (c *EthClient) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.call(ctx, "eth_getBalance", func(ctx context.Context) error {
		var err error
		balance, err = c.ethClient.BalanceAt(ctx, addr, nil)
		return err
	})
	return balance, err
}

// Code 获取地址在最新区块的字节码，空合约返回 "0x"
func (c *EthClient) Code(ctx context.Context, addr common.Address) (string, error) {
	var code []byte
	err := c.call(ctx, "eth_getCode", func(ctx context.Context) error {
		var err error
		code, err = c.ethClient.CodeAt(ctx, addr, nil)
		return err
	})
	if err != nil {
		return "", err
	}
	return hexutil.Encode(code), nil
}

// call 执行一次节点请求：限速、临时错误重试、NotFound 转换为 ErrNotFound
func (c *EthClient) call(ctx context.Context, method string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s: %w", method, err)
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ethereum.NotFound) || isPrunedHistory(err) {
			return fmt.Errorf("%s: %w", method, ErrNotFound)
		}

		lastErr = err
		if !isTemporaryNetErr(err) || attempt == c.maxAttempts {
			break
		}

		sleep := time.Duration(attempt) * c.retryDelay
		c.logger.WithFields(logrus.Fields{
			"method":  method,
			"attempt": attempt,
		}).WithError(err).Debugf("rpc request failed, retrying in %v", sleep)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", method, ctx.Err())
		case <-time.After(sleep):
		}
	}
	return fmt.Errorf("%s: %w", method, lastErr)
}

// prunedHistoryCode 节点已裁剪历史区块时返回的 JSON-RPC 错误码
const prunedHistoryCode = 4444

// isPrunedHistory 判断是否为 "pruned history unavailable"
func isPrunedHistory(err error) bool {
	var rpcErr gethrpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == prunedHistoryCode
}

// isTemporaryNetErr 判断是否为可重试的网络错误
func isTemporaryNetErr(err error) bool {
	if err == nil {
		return false
	}

	var httpErr gethrpc.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}

	// 常见的 IO 错误也视为临时
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
