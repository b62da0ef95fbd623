package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TxRollbackError reports that an operation inside a transaction failed and
// the rollback could not be confirmed either, so the caller must reconcile
// or retry idempotently.
type TxRollbackError struct {
	OpErr       error
	RollbackErr error
}

func (err TxRollbackError) Error() string {
	return fmt.Sprintf("transaction failed (%v) and rollback could not be confirmed: %v", err.OpErr, err.RollbackErr)
}

func (err TxRollbackError) Unwrap() error {
	return err.OpErr
}

// runInTx runs fn inside a transaction: either every write in fn becomes
// visible, or none does.
func runInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(tx)
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return TxRollbackError{OpErr: err, RollbackErr: rbErr}
		}

		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
