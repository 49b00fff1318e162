package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cbodonnell/cardstage/pkg/repositories/models"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string, migrations string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	scripts, err := readMigrations(migrations)
	if err != nil {
		db.Close()
		return nil, err
	}
	for i, script := range scripts {
		if _, err := db.ExecContext(ctx, script); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute migration %d: %v", i+1, err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) SaveMatch(ctx context.Context, match *models.Match) error {
	q := `
	INSERT OR REPLACE INTO matches (session_id, result, winner, participants, turns, started_at, ended_at, action_log)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`
	var winner sql.NullInt64
	if match.Winner != nil {
		winner = sql.NullInt64{Int64: int64(*match.Winner), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		match.SessionID,
		match.Result,
		winner,
		match.Participants,
		match.Turns,
		match.StartedAt.UnixMilli(),
		match.EndedAt.UnixMilli(),
		match.ActionLog,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteMatch(row rowScanner) (*models.Match, error) {
	var match models.Match
	var winner sql.NullInt64
	var startedAt, endedAt int64
	if err := row.Scan(
		&match.SessionID,
		&match.Result,
		&winner,
		&match.Participants,
		&match.Turns,
		&startedAt,
		&endedAt,
		&match.ActionLog,
	); err != nil {
		return nil, err
	}
	if winner.Valid {
		w := uint32(winner.Int64)
		match.Winner = &w
	}
	match.StartedAt = time.UnixMilli(startedAt).UTC()
	match.EndedAt = time.UnixMilli(endedAt).UTC()
	return &match, nil
}

func (r *SQLiteRepository) GetMatch(ctx context.Context, sessionID string) (*models.Match, error) {
	q := `
	SELECT session_id, result, winner, participants, turns, started_at, ended_at, action_log
	FROM matches WHERE session_id = ?;
	`
	match, err := scanSQLiteMatch(r.db.QueryRowContext(ctx, q, sessionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{SessionID: sessionID}
		}
		return nil, fmt.Errorf("failed to scan match: %v", err)
	}

	return match, nil
}

func (r *SQLiteRepository) ListMatches(ctx context.Context, limit int) ([]*models.Match, error) {
	q := `
	SELECT session_id, result, winner, participants, turns, started_at, ended_at, action_log
	FROM matches ORDER BY ended_at DESC LIMIT ?;
	`
	rows, err := r.db.QueryContext(ctx, q, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %v", err)
	}
	defer rows.Close()

	matches := []*models.Match{}
	for rows.Next() {
		match, err := scanSQLiteMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %v", err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %v", err)
	}

	return matches, nil
}
