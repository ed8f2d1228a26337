package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OpenPostgres opens an instrumented pool pinned to schema on every connection and
// verifies it with a ping.
func OpenPostgres(ctx context.Context, dsn, schema string) (*sql.DB, error) {
	pinned, err := withSearchPath(dsn, schema)
	if err != nil {
		return nil, err
	}

	db, err := otelsql.Open("postgres", pinned,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return db, nil
}

func withSearchPath(dsn, schema string) (string, error) {
	if schema == "" {
		return dsn, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres url: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
