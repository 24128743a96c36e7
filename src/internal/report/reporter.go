package report

import (
	"fmt"
	"time"

	"github.com/admi-n/bytecode-excavator/src/internal"
)

// Reporter 报告器，整合生成器和存储功能
type Reporter struct {
	generator Generator
	storage   Storage
}

// NewReporter 创建报告器
func NewReporter(generator Generator, storage Storage) *Reporter {
	return &Reporter{
		generator: generator,
		storage:   storage,
	}
}

// GenerateAndSave 生成并保存报告
func (r *Reporter) GenerateAndSave(report *Report) (string, error) {
	// 生成报告内容
	content, err := r.generator.Generate(report)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	// 保存报告
	filepath, err := r.storage.Save(report, content)
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	return filepath, nil
}

// NewReport 根据扫描参数、统计和结果文件内容创建报告
func NewReport(params internal.SearchParameters, summary internal.ScanSummary, results []internal.MatchRecord) *Report {
	var targets []string
	if params.SearchCreation {
		targets = append(targets, "creation")
	}
	if params.SearchRuntime || !params.SearchCreation {
		targets = append(targets, "runtime")
	}
	if results == nil {
		results = []internal.MatchRecord{}
	}

	return &Report{
		Query:    params.Query,
		Targets:  targets,
		Balance:  params.BalanceOnly,
		ScanTime: time.Now(),
		Summary:  summary,
		Results:  results,
	}
}
