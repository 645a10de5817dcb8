package users

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/usergate/usergate/internal/platform/db"
	"github.com/usergate/usergate/internal/shared"
)

// PgxTx returns a TxRunner that binds repo and the audit log to a
// read-committed transaction on b.
func PgxTx(b db.Beginner, repo *Repository) TxRunner {
	return func(ctx context.Context, fn func(RepositoryPort, AuditRecorder) error) error {
		return db.WithTx(ctx, b, pgx.ReadCommitted, func(tx pgx.Tx) error {
			return fn(repo.WithTx(tx), shared.NewAuditLogger(tx))
		})
	}
}
