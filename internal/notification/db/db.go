// Package db は通知テーブルへのクエリを提供する。
package db

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
)

// DBTX は*sql.DBと*sql.Txの共通インターフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries は通知テーブルに対するクエリ実行オブジェクト。
type Queries struct {
	db      DBTX
	builder sq.StatementBuilderType
}

// New はDBTXをラップしたQueriesを生成する。
func New(db DBTX) *Queries {
	return &Queries{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}
