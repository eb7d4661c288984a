package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gss-go/internal/database/migrations"
	"gss-go/internal/gss"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// NewPostgresDatabase connects to PostgreSQL using dsn.
func NewPostgresDatabase(dsn string, clock gss.Clock, idgen gss.IDGenerator) (*SQLDatabase, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	return NewSQLDatabaseFromDB(db, migrations.DriverPostgres, clock, idgen), nil
}
