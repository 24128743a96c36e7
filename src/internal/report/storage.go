package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Storage 报告存储接口
type Storage interface {
	Save(report *Report, content string) (string, error)
}

// FileStorage 把报告写到目录下，文件名带区块范围和生成时间
type FileStorage struct {
	OutputDir string
	now       func() time.Time
}

// NewFileStorage 创建文件存储
func NewFileStorage(outputDir string) *FileStorage {
	return &FileStorage{OutputDir: outputDir, now: time.Now}
}

// Save 保存报告，报告没有扫描时间时按当前时间命名
func (s *FileStorage) Save(report *Report, content string) (string, error) {
	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	ts := report.ScanTime
	if ts.IsZero() && s.now != nil {
		ts = s.now()
	}
	r := report.Summary.Range
	path := filepath.Join(s.OutputDir, fmt.Sprintf("scan_report_%s_%s.md", r, ts.UTC().Format("20060102T150405Z")))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}
