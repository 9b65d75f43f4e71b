package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/database"
	"github.com/wonny/demandcast/pkg/logger"
)

// Postgres persists stage artifacts as JSONB rows keyed by session and stage.
type Postgres struct {
	db  *database.DB
	log *logger.Logger
}

// NewPostgres creates a Postgres-backed artifact store.
func NewPostgres(db *database.DB, log *logger.Logger) *Postgres {
	return &Postgres{
		db:  db,
		log: log.WithComponent("artifact-store"),
	}
}

// EnsureSchema creates the artifact table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pipeline_artifacts (
			session_id TEXT        NOT NULL,
			stage      TEXT        NOT NULL,
			payload    JSONB       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (session_id, stage)
		)`)
	if err != nil {
		return fmt.Errorf("create pipeline_artifacts: %w", err)
	}
	return nil
}

// Write upserts one stage artifact for a session.
func (p *Postgres) Write(ctx context.Context, sessionID string, stage contracts.Stage, artifact interface{}) error {
	data, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("encode %s artifact: %w", stage, err)
	}

	_, err = p.db.Pool.Exec(ctx, `
		INSERT INTO pipeline_artifacts (session_id, stage, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id, stage)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		sessionID, string(stage), data)
	if err != nil {
		return fmt.Errorf("write %s artifact: %w", stage, err)
	}

	p.log.WithField("session", sessionID).WithField("stage", stage).
		Debug("artifact written")
	return nil
}

// Read loads one stage artifact into dest.
func (p *Postgres) Read(ctx context.Context, sessionID string, stage contracts.Stage, dest interface{}) error {
	var data []byte
	err := p.db.Pool.QueryRow(ctx, `
		SELECT payload FROM pipeline_artifacts
		WHERE session_id = $1 AND stage = $2`,
		sessionID, string(stage)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.NotFoundf(string(stage), "no %s artifact for session %s", stage, sessionID)
	}
	if err != nil {
		return fmt.Errorf("read %s artifact: %w", stage, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s artifact: %w", stage, err)
	}
	return nil
}

// Delete removes the given stage artifacts for a session.
func (p *Postgres) Delete(ctx context.Context, sessionID string, stages ...contracts.Stage) error {
	if len(stages) == 0 {
		return nil
	}

	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = string(st)
	}

	_, err := p.db.Pool.Exec(ctx, `
		DELETE FROM pipeline_artifacts
		WHERE session_id = $1 AND stage = ANY($2)`,
		sessionID, names)
	if err != nil {
		return fmt.Errorf("delete artifacts: %w", err)
	}
	return nil
}

// Sessions lists every session id with at least one artifact.
func (p *Postgres) Sessions(ctx context.Context) ([]string, error) {
	rows, err := p.db.Pool.Query(ctx, `
		SELECT DISTINCT session_id FROM pipeline_artifacts ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
