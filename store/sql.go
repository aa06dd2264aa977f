package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/samber/oops"
	"github.com/uptrace/bun"
)

type sessionRecord struct {
	bun.BaseModel `bun:"table:session_records,alias:sr"`
	Namespace     string    `bun:"namespace,pk"`
	Payload       []byte    `bun:"payload,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// SQL keeps the record in a single row of the session_records table.
type SQL struct {
	db   *bun.DB
	opts options
}

var _ authsession.Store = (*SQL)(nil)

// NewSQL returns a store using db. Call Migrate before first use.
func NewSQL(db *bun.DB, opts ...Option) *SQL {
	return &SQL{db: db, opts: buildOptions(opts...)}
}

// Migrate creates the session_records table if missing
func (s *SQL) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*sessionRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return oops.In("store").Wrapf(err, "create session_records table")
	}
	return nil
}

// Get implements authsession.Store
func (s *SQL) Get(ctx context.Context) ([]byte, error) {
	rec := new(sessionRecord)
	err := s.db.NewSelect().
		Model(rec).
		Where("namespace = ?", s.opts.namespace).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authsession.ErrNoRecord
	}
	if err != nil {
		return nil, oops.In("store").With("namespace", s.opts.namespace).Wrapf(err, "select session record")
	}
	return rec.Payload, nil
}

// Set implements authsession.Store
func (s *SQL) Set(ctx context.Context, record []byte) error {
	rec := &sessionRecord{
		Namespace: s.opts.namespace,
		Payload:   clone(record),
		UpdatedAt: s.opts.now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (namespace) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return oops.In("store").With("namespace", s.opts.namespace).Wrapf(err, "upsert session record")
	}
	return nil
}

// Clear implements authsession.Store
func (s *SQL) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("namespace = ?", s.opts.namespace).
		Exec(ctx)
	if err != nil {
		return oops.In("store").With("namespace", s.opts.namespace).Wrapf(err, "delete session record")
	}
	return nil
}
