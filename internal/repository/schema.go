package repository

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
)

const (
	tableWorkOrders  = "work_orders"
	tableReviewItems = "review_items"
)

// timestamps are stored as fixed-width UTC text so they sort the same in every dialect
const tsLayout = "2006-01-02T15:04:05.000000Z"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) time.Time {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// schemaDDL is valid for both SQLite and Postgres; SQLite maps the declared types
// onto its affinities.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS work_orders (
	order_key     varchar(255) NOT NULL PRIMARY KEY,
	issuer        varchar(255) NOT NULL,
	identifier    varchar(255) NOT NULL,
	status        varchar(32)  NOT NULL,
	customer_name text         NOT NULL DEFAULT '',
	site_address  text         NOT NULL DEFAULT '',
	description   text         NOT NULL DEFAULT '',
	artifact_path text         NOT NULL DEFAULT '',
	source        varchar(32)  NOT NULL DEFAULT '',
	updated_at    varchar(40)  NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS work_orders_identifier ON work_orders (identifier)`,
	`CREATE TABLE IF NOT EXISTS review_items (
	id               varchar(36)  NOT NULL PRIMARY KEY,
	doc_hash         varchar(64)  NOT NULL,
	issuer           varchar(255) NOT NULL DEFAULT '',
	identifier       varchar(255) NOT NULL DEFAULT '',
	reason           varchar(64)  NOT NULL,
	confidence_raw   double precision,
	confidence_label varchar(16)  NOT NULL DEFAULT '',
	source           varchar(32)  NOT NULL DEFAULT '',
	filename         text         NOT NULL DEFAULT '',
	sender           text         NOT NULL DEFAULT '',
	detail           text         NOT NULL DEFAULT '',
	created_at       varchar(40)  NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS review_items_doc_hash ON review_items (doc_hash)`,
}

// Migrate creates the tables and indexes if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	switch d := db.Dialect(); d {
	case dialect.SQLite, dialect.Postgres:
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", d)
	}
	for _, q := range schemaDDL {
		if err := db.Driver.Exec(ctx, q, []any{}, nil); err != nil {
			db.logger.Error("migration failed", "statement", q, "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	db.logger.Info("database schema ready", "dialect", db.Dialect())
	return nil
}
