package repositories

import (
	"context"
	"fmt"

	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/repositories/models"
	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository connects to the database and runs the migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, connStr string, migrations string) (Repository, error) {
	conn, err := connectDb(ctx, connStr)
	if err != nil {
		return nil, err
	}

	scripts, err := readMigrations(migrations)
	if err != nil {
		conn.Close(ctx)
		return nil, err
	}
	for i, script := range scripts {
		if _, err := conn.Exec(ctx, script); err != nil {
			conn.Close(ctx)
			return nil, fmt.Errorf("failed to execute migration %d: %v", i+1, err)
		}
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func connectDb(ctx context.Context, connStr string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	var username string
	var database string
	err = conn.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("unable to query database: %v", err)
	}

	log.Info("Connected to %s as %s", database, username)

	return conn, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) SaveMatch(ctx context.Context, match *models.Match) error {
	q := `
	INSERT INTO matches (session_id, result, winner, participants, turns, started_at, ended_at, action_log)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (session_id) DO UPDATE SET result = $2, winner = $3, turns = $5, ended_at = $7, action_log = $8;
	`
	var winner *int64
	if match.Winner != nil {
		w := int64(*match.Winner)
		winner = &w
	}
	_, err := r.conn.Exec(ctx, q,
		match.SessionID,
		match.Result,
		winner,
		int64(match.Participants),
		int64(match.Turns),
		match.StartedAt,
		match.EndedAt,
		match.ActionLog,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}

	return nil
}

func scanPostgresMatch(row pgx.Row) (*models.Match, error) {
	var match models.Match
	var winner *int64
	var participants, turns int64
	if err := row.Scan(
		&match.SessionID,
		&match.Result,
		&winner,
		&participants,
		&turns,
		&match.StartedAt,
		&match.EndedAt,
		&match.ActionLog,
	); err != nil {
		return nil, err
	}
	if winner != nil {
		w := uint32(*winner)
		match.Winner = &w
	}
	match.Participants = uint32(participants)
	match.Turns = uint32(turns)
	return &match, nil
}

func (r *PostgresRepository) GetMatch(ctx context.Context, sessionID string) (*models.Match, error) {
	q := `
	SELECT session_id, result, winner, participants, turns, started_at, ended_at, action_log
	FROM matches WHERE session_id = $1;
	`
	match, err := scanPostgresMatch(r.conn.QueryRow(ctx, q, sessionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{SessionID: sessionID}
		}
		return nil, fmt.Errorf("failed to scan match: %v", err)
	}

	return match, nil
}

func (r *PostgresRepository) ListMatches(ctx context.Context, limit int) ([]*models.Match, error) {
	q := `
	SELECT session_id, result, winner, participants, turns, started_at, ended_at, action_log
	FROM matches ORDER BY ended_at DESC LIMIT $1;
	`
	rows, err := r.conn.Query(ctx, q, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %v", err)
	}
	defer rows.Close()

	matches := []*models.Match{}
	for rows.Next() {
		match, err := scanPostgresMatch(rows)
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
