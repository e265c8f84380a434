package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"courier/internal/types"
)

var (
	_ types.RepositoryRegistry = (*Store)(nil)
	_ types.TransactionManager = (*TxManager)(nil)
)

// Store binds every repository to one database handle. Built over the pool
// it serves reads; built over a pgx.Tx it is the registry handed to
// TxManager callbacks.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) Notifications() types.NotificationRepository { return NewNotificationRepository(s.db) }
func (s *Store) Messages() types.MessageRepository           { return NewMessageRepository(s.db) }
func (s *Store) Attachments() types.AttachmentRepository     { return NewAttachmentRepository(s.db) }
func (s *Store) Outbox() types.OutboxRepository              { return NewOutboxRepository(s.db) }
func (s *Store) Persons() types.PersonRepository             { return NewPersonRepository(s.db) }
func (s *Store) StoredFiles() types.StoredFileRepository     { return NewStoredFileRepository(s.db) }
func (s *Store) Preferences() types.PreferenceRepository     { return NewPreferenceRepository(s.db) }

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager runs callbacks inside a pgx transaction. The callback receives a
// Store bound to the transaction; row locks taken through it (GetForUpdate,
// ClaimDue) are held until commit or rollback.
type TxManager struct {
	pool TxBeginner
}

func NewTxManager(pool TxBeginner) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx commits when fn returns nil and rolls back otherwise. A panic in
// fn rolls back and is re-raised.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, repos types.RepositoryRegistry) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(ctx, NewStore(tx)); err != nil {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
