// Package sqlite opens bun databases backed by the sqlite shim driver.
package sqlite

import (
	"database/sql"
	"strings"

	"github.com/samber/oops"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// MemoryDSN is a private in-memory database
const MemoryDSN = ":memory:"

// Options tunes Open
type Options struct {
	// Verbose logs every query through bundebug
	Verbose bool
}

// Open returns a bun.DB for dsn. In-memory databases are pinned to a
// single connection so every query sees the same schema.
func Open(dsn string, opts Options) (*bun.DB, error) {
	if dsn == "" {
		return nil, oops.In("sqlite").Errorf("dsn is required")
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, oops.In("sqlite").With("dsn", dsn).Wrapf(err, "open database")
	}
	if dsn == MemoryDSN || strings.Contains(dsn, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if opts.Verbose {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}
