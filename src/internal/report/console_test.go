package report

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/admi-n/bytecode-excavator/src/internal"
	"github.com/admi-n/bytecode-excavator/src/internal/rpc"
	"github.com/admi-n/bytecode-excavator/src/internal/scan"
)

var _ scan.Reporter = (*Console)(nil)

func newTestConsole(opts ConsoleOptions) (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	opts.Color = false
	return NewConsole(&buf, opts), &buf
}

func TestConsole_StatusGatesBlockStarted(t *testing.T) {
	quiet, quietBuf := newTestConsole(ConsoleOptions{})
	quiet.BlockStarted(7)
	assert.Empty(t, quietBuf.String())

	loud, loudBuf := newTestConsole(ConsoleOptions{Status: true})
	loud.BlockStarted(7)
	assert.Contains(t, loudBuf.String(), "扫描区块 7")
}

func TestConsole_BlockUnavailableAlwaysPrinted(t *testing.T) {
	c, buf := newTestConsole(ConsoleOptions{})
	c.BlockUnavailable(42)
	assert.Contains(t, buf.String(), "区块 42 不可用")
}

func TestConsole_VerboseGatesTransactionSeen(t *testing.T) {
	to := common.HexToAddress("0x02")
	tx := &rpc.Transaction{
		Hash:  common.HexToHash("0xaa"),
		From:  common.HexToAddress("0x01"),
		To:    &to,
		Value: big.NewInt(5),
	}

	quiet, quietBuf := newTestConsole(ConsoleOptions{})
	quiet.TransactionSeen(tx)
	assert.Empty(t, quietBuf.String())

	loud, loudBuf := newTestConsole(ConsoleOptions{Verbose: true})
	loud.TransactionSeen(tx)
	assert.Contains(t, loudBuf.String(), to.Hex())
	assert.Contains(t, loudBuf.String(), "value=5")

	creation := &rpc.Transaction{Hash: common.HexToHash("0xbb")}
	loudBuf.Reset()
	loud.TransactionSeen(creation)
	assert.Contains(t, loudBuf.String(), "合约创建")
	assert.Contains(t, loudBuf.String(), "value=0")
}

func TestConsole_PayloadUnavailableHints(t *testing.T) {
	hash := common.HexToHash("0x01")
	cases := []struct {
		kind internal.PayloadKind
		want string
	}{
		{internal.PayloadCreation, "--search-runtime"},
		{internal.PayloadRuntime, "--search-creation"},
		{internal.PayloadTransaction, "交易数据不可用"},
		{internal.PayloadReceipt, "收据/合约地址不可用"},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			c, buf := newTestConsole(ConsoleOptions{})
			c.PayloadUnavailable(tc.kind, hash)
			assert.Contains(t, buf.String(), tc.want)
			assert.Contains(t, buf.String(), hash.Hex())
		})
	}
}

func TestConsole_MatchFound(t *testing.T) {
	c, buf := newTestConsole(ConsoleOptions{})
	c.MatchFound(&internal.MatchRecord{
		BlockNumber:     9,
		ContractAddress: "0xC0ffee0000000000000000000000000000000000",
		OwnerAddress:    "0x00000000000000000000000000000000000000F0",
		ContractBalance: "12",
	})
	out := buf.String()
	assert.Contains(t, out, "发现合约: 0xC0ffee0000000000000000000000000000000000")
	assert.Contains(t, out, "区块 9")
	assert.Contains(t, out, "余额 12 wei")
}

func TestConsole_SummaryGatesScanComplete(t *testing.T) {
	summary := internal.ScanSummary{
		Range:         internal.BlockRange{Start: 1, End: 3},
		BlocksScanned: 3,
		Transactions:  10,
		Creations:     2,
		Matches:       1,
		Elapsed:       1500 * time.Millisecond,
	}

	quiet, quietBuf := newTestConsole(ConsoleOptions{})
	quiet.ScanComplete(summary)
	assert.Empty(t, quietBuf.String())

	loud, loudBuf := newTestConsole(ConsoleOptions{Summary: true})
	loud.ScanComplete(summary)
	out := loudBuf.String()
	assert.Contains(t, out, "扫描完成")
	assert.Contains(t, out, "区块范围: 1-3")
	assert.Contains(t, out, "命中合约: 1")
	assert.Contains(t, out, "1.5s")
}

func TestConsole_PrintMatches(t *testing.T) {
	c, buf := newTestConsole(ConsoleOptions{})
	c.PrintMatches(nil)
	assert.Contains(t, buf.String(), "没有命中的合约")

	buf.Reset()
	c.PrintMatches([]internal.MatchRecord{
		{BlockNumber: 1, ContractAddress: "0xaaa", OwnerAddress: "0xbbb", ContractBalance: "0"},
		{BlockNumber: 2, ContractAddress: "0xccc", OwnerAddress: "0xddd", ContractBalance: "7"},
	})
	out := buf.String()
	assert.Contains(t, out, "命中合约 (2)")
	assert.Contains(t, out, "0xaaa")
	assert.Contains(t, out, "0xccc")
}
