package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx é o mínimo que os repositórios precisam para rodar SQL.
// Tanto *pgxpool.Pool quanto pgx.Tx satisfazem, e é isso que permite o
// padrão WithTx devolver uma cópia do repositório presa à transação.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// uniqueViolation é o código SQLSTATE de violação de índice único.
const uniqueViolation = "23505"

// exclusionViolation é o SQLSTATE da exclusion constraint que barra
// slots sobrepostos do mesmo trainer.
const exclusionViolation = "23P01"
