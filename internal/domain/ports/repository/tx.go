package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a transaction and hands the backend
// specific handle to fn as tx (pgx.Tx for Postgres, a store handle for the
// memory backend). Repositories accept a nil tx for the non-transactional path.
//
// tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//	code, err := codes.FindByCode(ctx, tx, "LAUNCH-7K2M9QXZ")
//	...
// })
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
