package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/persistence/file"
	"github.com/leadflow/leadflow/pkg/persistence/postgresql"
)

// NewPersistence builds the persistence layer from the database URL scheme.
// postgres:// URLs get the production PostgreSQL layer; anything else is
// treated as a file path for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL persistence: %w", err)
		}

		return p, nil
	default:
		p, err := file.NewPersistence(databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file persistence: %w", err)
		}

		return p, nil
	}
}
