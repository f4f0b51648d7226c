package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pocket-guard/internal/domain"
)

// PgTurnRepository guarda el historial en la tabla buddy_turns.
// seq define el orden de insercion; expires_at se renueva en cada append.
type PgTurnRepository struct {
	pool *pgxpool.Pool
	opts StoreOptions
}

func NewPgTurnRepository(pool *pgxpool.Pool, opts StoreOptions) *PgTurnRepository {
	return &PgTurnRepository{pool: pool, opts: opts}
}

// EnsureSchema crea la tabla si no existe.
func (r *PgTurnRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS buddy_turns (
			seq        BIGSERIAL PRIMARY KEY,
			id         TEXT        NOT NULL,
			session_id TEXT        NOT NULL,
			role       TEXT        NOT NULL,
			text       TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS buddy_turns_session_seq_idx ON buddy_turns (session_id, seq);
	`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *PgTurnRepository) Append(ctx context.Context, sessionID string, turn domain.ChatTurn) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ErrSessionRequired
	}

	var expiresAt interface{}
	if r.opts.TTL > 0 {
		expiresAt = time.Now().UTC().Add(r.opts.TTL)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
			INSERT INTO buddy_turns (id, session_id, role, text, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, insert,
			turn.ID,
			sessionID,
			string(turn.Role),
			turn.Text,
			turn.CreatedAt,
			expiresAt,
		); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}

		const touch = `UPDATE buddy_turns SET expires_at = $2 WHERE session_id = $1`
		if _, err := tx.Exec(ctx, touch, sessionID, expiresAt); err != nil {
			return fmt.Errorf("touch session: %w", err)
		}

		if r.opts.Limit > 0 {
			const trim = `
				DELETE FROM buddy_turns
				WHERE session_id = $1
				  AND seq NOT IN (
					SELECT seq FROM buddy_turns
					WHERE session_id = $1
					ORDER BY seq DESC
					LIMIT $2
				  )
			`
			if _, err := tx.Exec(ctx, trim, sessionID, r.opts.Limit); err != nil {
				return fmt.Errorf("trim history: %w", err)
			}
		}
		return nil
	})
}

func (r *PgTurnRepository) List(ctx context.Context, sessionID string) ([]domain.ChatTurn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return []domain.ChatTurn{}, nil
	}

	const query = `
		SELECT id, role, text, created_at
		FROM buddy_turns
		WHERE session_id = $1
		  AND (expires_at IS NULL OR expires_at > now())
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []domain.ChatTurn{}
	for rows.Next() {
		var turn domain.ChatTurn
		var role string
		if err := rows.Scan(&turn.ID, &role, &turn.Text, &turn.CreatedAt); err != nil {
			return nil, err
		}
		turn.Role = domain.ParseRole(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return turns, nil
}

func (r *PgTurnRepository) Clear(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM buddy_turns WHERE session_id = $1`
	_, err := r.pool.Exec(ctx, query, strings.TrimSpace(sessionID))
	return err
}

func (r *PgTurnRepository) Sweep(ctx context.Context) (int64, error) {
	const query = `DELETE FROM buddy_turns WHERE expires_at IS NOT NULL AND expires_at <= now()`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
