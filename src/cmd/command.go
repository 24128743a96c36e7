package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/admi-n/bytecode-excavator/src/config"
	"github.com/admi-n/bytecode-excavator/src/internal"
	"github.com/admi-n/bytecode-excavator/src/internal/query"
	"github.com/admi-n/bytecode-excavator/src/internal/report"
	"github.com/admi-n/bytecode-excavator/src/internal/rpc"
	"github.com/admi-n/bytecode-excavator/src/internal/scan"
	"github.com/admi-n/bytecode-excavator/src/internal/store"
)

// Execute 执行扫描命令，cfg 需要已经通过 Validate
func Execute(ctx context.Context, cfg *CLIConfig, stdout, stderr io.Writer) error {
	// 加载配置文件
	settings, err := config.LoadSettings(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger, closeLog, err := config.NewLogger(settings, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	// 查询内容，文件模式下读取文件
	queryText := cfg.Query
	if cfg.QueryFile != "" {
		queryText, err = query.Load(cfg.QueryFile)
		if err != nil {
			return err
		}
	}
	if query.Compile(queryText).Empty() {
		return fmt.Errorf("查询内容为空: %s", cfg.QueryFile)
	}
	params := cfg.Parameters(queryText)

	// 连接节点
	client := settings.Client(cfg.Client)
	proxy := cfg.Proxy
	if proxy == "" {
		proxy = settings.RPC.Proxy
	}
	node, err := rpc.Dial(ctx, rpc.Config{
		Endpoint:          rpc.Endpoint(client.Scheme, client.Host, cfg.Port),
		Proxy:             proxy,
		Timeout:           settings.RPC.Timeout,
		MaxAttempts:       settings.RPC.MaxAttempts,
		RetryDelay:        settings.RPC.RetryDelay,
		RequestsPerSecond: settings.RPC.RequestsPerSecond,
	}, logger)
	if err != nil {
		return fmt.Errorf("连接节点失败: %w", err)
	}
	defer node.Close()

	logger.WithFields(logrus.Fields{
		"client":   cfg.Client,
		"endpoint": node.Endpoint(),
	}).Info("🔗 已连接节点")

	// 结果存储
	var (
		sinks      []store.Sink
		resultFile *store.ResultFile
	)
	if cfg.OutputFile != "" {
		resultFile, err = store.Initialize(cfg.OutputFile)
		if err != nil {
			return fmt.Errorf("初始化结果文件失败: %w", err)
		}
		sinks = append(sinks, resultFile)
	}
	if cfg.Archive {
		archive, closeArchive, err := openArchive(ctx, settings, logger)
		if err != nil {
			return err
		}
		defer closeArchive()
		sinks = append(sinks, archive)
	}
	var sink store.Sink
	if len(sinks) > 0 {
		sink = store.Multi(sinks...)
	}

	console := report.NewConsole(stdout, report.ConsoleOptions{
		Status:  cfg.Status,
		Verbose: cfg.Verbose,
		Summary: cfg.Summary,
		Color:   !cfg.NoColor && !color.NoColor,
	})

	summary, err := scan.NewEngine(logger).Run(ctx, params, node, sink, console)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"scanned": summary.BlocksScanned,
			"matches": summary.Matches,
		}).Error("❌ 扫描中断")
		return err
	}

	// 结果文件为准，打印和报告都从文件读回
	var results []internal.MatchRecord
	if resultFile != nil {
		results, err = resultFile.ReadAll()
		if err != nil {
			return fmt.Errorf("读取结果文件失败: %w", err)
		}
	}

	if cfg.Summary {
		if resultFile != nil {
			console.PrintMatches(results)
		} else {
			logger.Info("未指定 --output-file，跳过命中列表")
		}
	}

	if cfg.ReportDir != "" {
		reporter := report.NewReporter(report.NewMarkdownGenerator(), report.NewFileStorage(cfg.ReportDir))
		path, err := reporter.GenerateAndSave(report.NewReport(params, summary, results))
		if err != nil {
			return err
		}
		logger.WithField("path", path).Info("📄 报告已生成")
	}

	return nil
}

// openArchive 打开数据库归档并建表
func openArchive(ctx context.Context, settings *config.Settings, logger logrus.FieldLogger) (*store.Archive, func() error, error) {
	db, err := config.OpenArchiveDB(ctx, settings)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	archive, err := store.NewArchive(db, settings.Archive.Table)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := archive.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	logger.WithFields(logrus.Fields{
		"driver": db.DriverName(),
		"table":  settings.Archive.Table,
	}).Info("📊 数据库归档已启用")
	return archive, db.Close, nil
}
