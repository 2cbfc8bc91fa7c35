package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/nodeweld/nodeweld/pkg/ident"
)

type fakeTx struct {
	writes      int
	committed   bool
	rolledBack  bool
	rollbackErr error
}

func (t *fakeTx) WriteAttribute(ctx context.Context, field string, values map[int64]ident.Value) error {
	t.writes++
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return t.rollbackErr
}

type fakeEditor struct {
	tx       *fakeTx
	beginErr error
}

func (e *fakeEditor) Begin(ctx context.Context) (Tx, error) {
	if e.beginErr != nil {
		return nil, e.beginErr
	}
	return e.tx, nil
}

func TestWithEditCommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	err := WithEdit(context.Background(), &fakeEditor{tx: tx}, func(tx Tx) error {
		return tx.WriteAttribute(context.Background(), "from_node_id", nil)
	})
	if err != nil {
		t.Fatalf("WithEdit: %v", err)
	}
	if tx.writes != 1 {
		t.Errorf("writes = %d, want 1", tx.writes)
	}
	if !tx.committed || tx.rolledBack {
		t.Errorf("committed = %v, rolledBack = %v, want commit only", tx.committed, tx.rolledBack)
	}
}

func TestWithEditRollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("boom")
	err := WithEdit(context.Background(), &fakeEditor{tx: tx}, func(Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Errorf("committed = %v, rolledBack = %v, want rollback only", tx.committed, tx.rolledBack)
	}
}

func TestWithEditJoinsRollbackFailure(t *testing.T) {
	rbErr := errors.New("rollback failed")
	tx := &fakeTx{rollbackErr: rbErr}
	boom := errors.New("boom")
	err := WithEdit(context.Background(), &fakeEditor{tx: tx}, func(Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error %v does not wrap fn error", err)
	}
	if !errors.Is(err, rbErr) {
		t.Errorf("error %v does not wrap rollback error", err)
	}
}

func TestWithEditRollsBackOnPanic(t *testing.T) {
	tx := &fakeTx{}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic did not propagate")
			}
		}()
		_ = WithEdit(context.Background(), &fakeEditor{tx: tx}, func(Tx) error {
			panic("boom")
		})
	}()
	if tx.committed || !tx.rolledBack {
		t.Errorf("committed = %v, rolledBack = %v, want rollback only", tx.committed, tx.rolledBack)
	}
}

func TestWithEditBeginFailure(t *testing.T) {
	beginErr := errors.New("no session")
	called := false
	err := WithEdit(context.Background(), &fakeEditor{beginErr: beginErr}, func(Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, beginErr) {
		t.Errorf("error = %v, want begin error", err)
	}
	if called {
		t.Error("fn ran despite Begin failure")
	}
}
