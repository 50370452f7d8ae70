package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept NoTX for the non-transactional path.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction. Repository calls
// made with the tx handed to fn share that transaction; returning an error rolls
// it back. Callbacks registered with OnCommit on fn's ctx run after a successful commit.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type commitHooksKey struct{}

type commitHooks struct {
	fns []func()
}

// WithCommitHooks scopes ctx to one transaction. The returned func runs the
// callbacks queued by OnCommit in order; transaction managers call it after commit
// and drop it on rollback.
func WithCommitHooks(ctx context.Context) (context.Context, func()) {
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), func() {
		for _, fn := range h.fns {
			fn()
		}
	}
}

// OnCommit queues fn until the transaction scoped on ctx commits. Without a
// transaction scope fn runs immediately.
func OnCommit(ctx context.Context, fn func()) {
	if h, ok := ctx.Value(commitHooksKey{}).(*commitHooks); ok {
		h.fns = append(h.fns, fn)
		return
	}
	fn()
}
