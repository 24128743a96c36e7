package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/admi-n/bytecode-excavator/src/internal"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type dialect struct {
	idColumn string
	textType string
	upsert   string
}

func dialectFor(driverName string) (dialect, error) {
	switch driverName {
	case "mysql":
		return dialect{
			idColumn: "id BIGINT AUTO_INCREMENT PRIMARY KEY",
			textType: "LONGTEXT",
			upsert: `ON DUPLICATE KEY UPDATE
		contract_balance = VALUES(contract_balance),
		contract_bytecode = VALUES(contract_bytecode)`,
		}, nil
	case "pgx", "postgres":
		return dialect{
			idColumn: "id BIGSERIAL PRIMARY KEY",
			textType: "TEXT",
			upsert: `ON CONFLICT (contract_address) DO UPDATE SET
		contract_balance = excluded.contract_balance,
		contract_bytecode = excluded.contract_bytecode`,
		}, nil
	case "sqlite":
		return dialect{
			idColumn: "id INTEGER PRIMARY KEY AUTOINCREMENT",
			textType: "TEXT",
			upsert: `ON CONFLICT (contract_address) DO UPDATE SET
		contract_balance = excluded.contract_balance,
		contract_bytecode = excluded.contract_bytecode`,
		}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported archive driver: %s (supported: mysql, pgx, sqlite)", driverName)
	}
}

// Archive 把命中记录同步写入数据库表，同一合约地址再次命中时刷新余额与字节码
type Archive struct {
	db      *sqlx.DB
	table   string
	dialect dialect
}

// NewArchive 创建数据库归档，table 为空时使用 matches
func NewArchive(db *sqlx.DB, table string) (*Archive, error) {
	if db == nil {
		return nil, fmt.Errorf("NewArchive: db is nil")
	}
	if table == "" {
		table = "matches"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid archive table name: %q", table)
	}
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	return &Archive{db: db, table: table, dialect: d}, nil
}

// EnsureSchema 建表（已存在则跳过）
func (a *Archive) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s,
	block_number BIGINT NOT NULL,
	transaction_hash VARCHAR(66) NOT NULL,
	contract_address VARCHAR(42) NOT NULL UNIQUE,
	owner_address VARCHAR(42) NOT NULL,
	transaction_nonce BIGINT NOT NULL,
	transaction_value VARCHAR(80) NOT NULL,
	contract_balance VARCHAR(80) NOT NULL,
	transaction_data %s NOT NULL,
	contract_bytecode %s NOT NULL
)`, a.table, a.dialect.idColumn, a.dialect.textType, a.dialect.textType)

	if _, err := a.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("创建归档表 %s 失败: %w", a.table, err)
	}
	return nil
}

// Append 写入一条命中记录
func (a *Archive) Append(ctx context.Context, rec *internal.MatchRecord) error {
	if rec == nil {
		return fmt.Errorf("append nil record")
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (block_number, transaction_hash, contract_address, owner_address, transaction_nonce,
		transaction_value, contract_balance, transaction_data, contract_bytecode)
	VALUES (:block_number, :transaction_hash, :contract_address, :owner_address, :transaction_nonce,
		:transaction_value, :contract_balance, :transaction_data, :contract_bytecode)
	%s`, a.table, a.dialect.upsert)

	if _, err := a.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("保存命中记录 %s 失败: %w", rec.ContractAddress, err)
	}
	return nil
}

// ReadAll 按区块号与写入顺序读出全部记录
func (a *Archive) ReadAll(ctx context.Context) ([]internal.MatchRecord, error) {
	query := fmt.Sprintf(`SELECT block_number, transaction_hash, contract_address, owner_address, transaction_nonce,
	transaction_value, contract_balance, transaction_data, contract_bytecode
FROM %s ORDER BY block_number, id`, a.table)

	var out []internal.MatchRecord
	if err := a.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("读取归档表 %s 失败: %w", a.table, err)
	}
	return out, nil
}
