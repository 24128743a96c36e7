package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/admi-n/bytecode-excavator/src/internal"
)

// ErrNotInitialized 结果文件不存在，需要先调用 Initialize
var ErrNotInitialized = errors.New("result file not initialized")

// ResultFile 以 JSON 数组形式保存命中记录的结果文件。
// 每次 Append 都会完整地读-改-写一次文件，只允许一个顺序调用方使用。
type ResultFile struct {
	path string
}

// Initialize 创建（或覆盖）结果文件，写入空数组。新的扫描总是从空文件开始。
func Initialize(path string) (*ResultFile, error) {
	f := &ResultFile{path: path}
	if err := f.write([]internal.MatchRecord{}); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenResultFile 打开已有的结果文件，只用于读取
func OpenResultFile(path string) *ResultFile {
	return &ResultFile{path: path}
}

// Path 返回结果文件路径
func (f *ResultFile) Path() string {
	return f.path
}

// Append 追加一条记录并立即落盘
func (f *ResultFile) Append(ctx context.Context, rec *internal.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("append nil record")
	}

	recs, err := f.ReadAll()
	if err != nil {
		return err
	}
	recs = append(recs, *rec)
	return f.write(recs)
}

// ReadAll 按追加顺序返回所有记录
func (f *ResultFile) ReadAll() ([]internal.MatchRecord, error) {
	bs, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", f.path, ErrNotInitialized)
		}
		return nil, fmt.Errorf("读取结果文件 %s 失败: %w", f.path, err)
	}

	var recs []internal.MatchRecord
	if err := json.Unmarshal(bs, &recs); err != nil {
		return nil, fmt.Errorf("解析结果文件 %s 失败: %w", f.path, err)
	}
	if recs == nil {
		recs = []internal.MatchRecord{}
	}
	return recs, nil
}

// write 先写同目录下的临时文件再 rename，文件内容始终是完整的 JSON
func (f *ResultFile) write(recs []internal.MatchRecord) error {
	bs, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化结果失败: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(bs); err != nil {
		tmp.Close()
		return fmt.Errorf("写入 %s 失败: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("同步 %s 失败: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭 %s 失败: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("设置 %s 权限失败: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", f.path, err)
	}
	return nil
}
