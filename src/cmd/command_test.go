package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admi-n/bytecode-excavator/src/internal"
)

const (
	testTxHash   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testContract = "0x00000000000000000000000000000000000000C1"
	testOwner    = "0x00000000000000000000000000000000000000F0"
)

// oneBlockNode 链上只有区块 100，其中一笔交易创建了合约 0xc1
func oneBlockNode(t *testing.T, balance string) string {
	t.Helper()
	results := map[string]string{
		"eth_blockNumber": `"0x64"`,
		"eth_getBlockByNumber": `{
			"number": "0x64",
			"hash": "0x1111111111111111111111111111111111111111111111111111111111111111",
			"transactions": ["` + testTxHash + `"]
		}`,
		"eth_getTransactionByHash": `{
			"hash": "` + testTxHash + `",
			"from": "` + testOwner + `",
			"to": null,
			"nonce": "0x2",
			"value": "0xde0b6b3a7640000",
			"input": "0x6080604052"
		}`,
		"eth_getTransactionReceipt": `{
			"type": "0x0",
			"status": "0x1",
			"cumulativeGasUsed": "0x5208",
			"logsBloom": "0x` + strings.Repeat("0", 512) + `",
			"logs": [],
			"transactionHash": "` + testTxHash + `",
			"contractAddress": "` + testContract + `",
			"gasUsed": "0x5208",
			"effectiveGasPrice": "0x1",
			"blockHash": "0x1111111111111111111111111111111111111111111111111111111111111111",
			"blockNumber": "0x64",
			"transactionIndex": "0x0"
		}`,
		"eth_getBalance": `"` + balance + `"`,
		"eth_getCode":    `"0x60806040dead"`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		result, ok := results[req.Method]
		if !ok {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Port()
}

func quietSettings(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rpc:\n  host: 127.0.0.1\n  retryDelay: 1ms\nlogging:\n  level: error\n"), 0644))
	return path
}

func readResults(t *testing.T, path string) []internal.MatchRecord {
	t.Helper()
	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	var recs []internal.MatchRecord
	require.NoError(t, json.Unmarshal(bs, &recs))
	return recs
}

func TestRootCommand_RuntimeMatchEndToEnd(t *testing.T) {
	dir := t.TempDir()
	port := oneBlockNode(t, "0x5")
	out := filepath.Join(dir, "matches.json")
	reports := filepath.Join(dir, "reports")

	stdout, _, err := runRoot(t,
		"--config", quietSettings(t, dir),
		"-p", port, "-s", "100",
		"-q", "0xDEAD",
		"-o", out,
		"--summary", "--no-color",
		"--report-dir", reports,
	)
	require.NoError(t, err)

	recs := readResults(t, out)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, uint64(100), rec.BlockNumber)
	assert.Equal(t, testTxHash, rec.TransactionHash)
	assert.True(t, strings.EqualFold(testContract, rec.ContractAddress))
	assert.True(t, strings.EqualFold(testOwner, rec.OwnerAddress))
	assert.Equal(t, uint64(2), rec.TransactionNonce)
	assert.Equal(t, "1000000000000000000", rec.TransactionValue)
	assert.Equal(t, "5", rec.ContractBalance)
	assert.Equal(t, "0x6080604052", rec.TransactionData)
	assert.Equal(t, "0x60806040dead", rec.ContractBytecode)

	assert.Contains(t, stdout, "发现合约")
	assert.Contains(t, stdout, "扫描完成")
	assert.Contains(t, stdout, "命中合约 (1)")

	entries, err := os.ReadDir(reports)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "scan_report_100-100_"))
}

func TestRootCommand_CreationTargetMisses(t *testing.T) {
	dir := t.TempDir()
	port := oneBlockNode(t, "0x5")
	out := filepath.Join(dir, "matches.json")

	_, _, err := runRoot(t,
		"--config", quietSettings(t, dir),
		"-p", port, "-s", "100", "-e", "100",
		"-q", "dead", "--search-creation",
		"-o", out, "--no-color",
	)
	require.NoError(t, err)
	assert.Empty(t, readResults(t, out))
}

func TestRootCommand_BalanceOnlySkipsEmptyContracts(t *testing.T) {
	dir := t.TempDir()
	port := oneBlockNode(t, "0x0")
	out := filepath.Join(dir, "matches.json")

	_, _, err := runRoot(t,
		"--config", quietSettings(t, dir),
		"-p", port, "-s", "100",
		"-q", "dead", "-b",
		"-o", out, "--no-color",
	)
	require.NoError(t, err)
	assert.Empty(t, readResults(t, out))
}

func TestRootCommand_QueryFile(t *testing.T) {
	dir := t.TempDir()
	port := oneBlockNode(t, "0x5")
	out := filepath.Join(dir, "matches.json")
	qf := filepath.Join(dir, "query.txt")
	require.NoError(t, os.WriteFile(qf, []byte("0x6080604052\n"), 0644))

	_, _, err := runRoot(t,
		"--config", quietSettings(t, dir),
		"-p", port, "-s", "100",
		"-f", qf, "--search-creation",
		"-o", out, "--no-color",
	)
	require.NoError(t, err)
	assert.Len(t, readResults(t, out), 1)
}

func TestRootCommand_EmptyQueryFile(t *testing.T) {
	dir := t.TempDir()
	qf := filepath.Join(dir, "query.txt")
	require.NoError(t, os.WriteFile(qf, []byte("0x\n"), 0644))

	_, _, err := runRoot(t,
		"--config", quietSettings(t, dir),
		"-p", "1", "-s", "100",
		"-f", qf,
	)
	assert.ErrorContains(t, err, "查询内容为空")
}

func TestRootCommand_SqliteArchive(t *testing.T) {
	dir := t.TempDir()
	port := oneBlockNode(t, "0x5")
	settings := filepath.Join(dir, "settings.yaml")
	dbPath := filepath.Join(dir, "matches.db")
	require.NoError(t, os.WriteFile(settings, []byte(
		"rpc:\n  host: 127.0.0.1\nlogging:\n  level: error\narchive:\n  driver: sqlite\n  name: "+dbPath+"\n"), 0644))

	_, _, err := runRoot(t,
		"--config", settings,
		"-p", port, "-s", "100",
		"-q", "dead", "--archive", "--no-color",
	)
	require.NoError(t, err)

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRootCommand_PrunedBlockIsSkipped(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "matches.json")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		head := `{"jsonrpc":"2.0","id":` + string(req.ID)
		switch {
		case req.Method == "eth_getBlockByNumber" && string(req.Params[0]) == `"0x64"`:
			_, _ = w.Write([]byte(head + `,"error":{"code":4444,"message":"pruned history unavailable"}}`))
		case req.Method == "eth_getBlockByNumber":
			_, _ = w.Write([]byte(head + `,"result":{"number":"0x65","hash":"0x2222222222222222222222222222222222222222222222222222222222222222","transactions":[]}}`))
		default:
			_, _ = w.Write([]byte(head + `,"error":{"code":-32601,"message":"method not found"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	stdout, _, err := runRoot(t,
		"--config", quietSettings(t, dir),
		"-p", u.Port(), "-s", "100", "-e", "101",
		"-q", "dead", "-o", out,
		"--status", "--summary", "--no-color",
	)
	require.NoError(t, err)

	assert.Contains(t, stdout, "区块 100 不可用")
	assert.Contains(t, stdout, "扫描区块 101")
	assert.Contains(t, stdout, "扫描区块: 2 (不可用 1)")
	assert.Empty(t, readResults(t, out))
}
