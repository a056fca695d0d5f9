package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/darius-projects/internal/repository"
)

// TxManager implements repository.TxManager for SQLite. The callback
// receives repositories bound to the transaction; any error or panic
// rolls the transaction back.
type TxManager struct {
	db *DB
}

// NewTxManager creates a transaction manager over the given database.
func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

var _ repository.TxManager = (*TxManager)(nil)

// WithTx runs fn inside a transaction.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	repos := repository.Repositories{
		Users:    newUserRepositoryTx(tx),
		Projects: newProjectRepositoryTx(tx),
	}

	if err := fn(ctx, repos); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
