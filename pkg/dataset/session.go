package dataset

import (
	"context"
	"errors"
)

// WithEdit runs fn inside an edit session, committing on success and rolling
// back on error or panic. The session is released on every exit path; a
// rollback failure is joined onto fn's error rather than masking it.
//
// This mirrors the usual edit-session bracket: changes made through the
// transaction are only saved when fn returns nil.
func WithEdit(ctx context.Context, ed Editor, fn func(tx Tx) error) error {
	tx, err := ed.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
