// Package persistence implements the fire-and-forget collaborator that
// durably records completed turns, per the orchestrator's PersistenceSink
// contract.
package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Postgres persists completed turns into a single append-only table. It
// never blocks the orchestrator: Persist is always called from a detached
// goroutine by the caller.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool against dsn and verifies it, creating
// the turns table if it does not already exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id SERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_text TEXT NOT NULL,
	reply TEXT NOT NULL,
	model TEXT NOT NULL,
	tokens_used INTEGER NOT NULL,
	processing_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("persistence: migrate: %w", err)
	}
	return nil
}

// Persist implements orchestrator.PersistenceSink.
func (p *Postgres) Persist(ctx context.Context, sessionID, userText, reply, model string, tokensUsed int, processingMS int64) error {
	const insert = `
INSERT INTO conversation_turns (session_id, user_text, reply, model, tokens_used, processing_ms)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := p.db.ExecContext(ctx, insert, sessionID, userText, reply, model, tokensUsed, processingMS)
	if err != nil {
		return fmt.Errorf("persistence: insert: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}
