package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicate reports a unique-key collision.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

// PostgresStore implements Store on top of sqlx.
type PostgresStore struct {
	db   *sqlx.DB
	q    sqlx.ExtContext
	inTx bool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) Buses() BusStore { return NewBusRepository(s.q) }

func (s *PostgresStore) Incidents() IncidentStore { return NewIncidentRepository(s.q) }

func (s *PostgresStore) EquipmentStatuses() EquipmentStatusStore {
	return &EquipmentStatusRepository{q: s.q, forUpdate: s.inTx}
}

func (s *PostgresStore) Documents() DocumentStore { return NewDocumentRepository(s.q) }

func (s *PostgresStore) Drivers() DriverStore { return NewDriverRepository(s.q) }

func (s *PostgresStore) Users() UserStore { return NewUserRepository(s.q) }

// WithinTx runs fn inside one database transaction. Nested calls join the
// outer transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&PostgresStore{db: s.db, q: tx, inTx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affected(op string, res interface{ RowsAffected() (int64, error) }) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

var _ Store = (*PostgresStore)(nil)
