package repositories

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cbodonnell/cardstage/pkg/repositories/models"
)

const DefaultListLimit = 50

type Repository interface {
	Close(ctx context.Context) error
	SaveMatch(ctx context.Context, match *models.Match) error
	GetMatch(ctx context.Context, sessionID string) (*models.Match, error)
	// ListMatches returns the most recently finished matches first.
	ListMatches(ctx context.Context, limit int) ([]*models.Match, error)
}

// NewRepository picks the implementation from the scheme of url:
// postgres:// and postgresql:// connect to PostgreSQL, sqlite:// (or a bare
// path) opens a SQLite database. Migrations are read from
// <migrations>/<driver>.
func NewRepository(ctx context.Context, url string, migrations string) (Repository, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewPostgresRepository(ctx, url, filepath.Join(migrations, "postgres"))
	case strings.HasPrefix(url, "sqlite://"):
		return NewSQLiteRepository(ctx, strings.TrimPrefix(url, "sqlite://"), filepath.Join(migrations, "sqlite"))
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("unsupported database url %q", url)
	default:
		return NewSQLiteRepository(ctx, url, filepath.Join(migrations, "sqlite"))
	}
}

// readMigrations returns the SQL files of dir in lexical order.
func readMigrations(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %v", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	migrations := make([]string, 0, len(names))
	for _, name := range names {
		migrationPath := filepath.Join(dir, name)
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}
		migrations = append(migrations, string(migration))
	}
	return migrations, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
