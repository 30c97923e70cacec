package checkpoint

import (
	"context"
	"fmt"

	"github.com/candle-sync/internal/database"
	"github.com/sirupsen/logrus"
)

// Store persists a single named cursor in MySQL. The cursor outlives the
// process, which is what lets a killed run resume without operator action.
type Store struct {
	mysql  *database.MySQLClient
	name   string
	logger *logrus.Entry
}

// NewStore creates a cursor store for the given cursor name
func NewStore(mysql *database.MySQLClient, name string, logger *logrus.Logger) *Store {
	return &Store{
		mysql:  mysql,
		name:   name,
		logger: logger.WithField("component", "checkpoint"),
	}
}

// Load reads the cursor, returning 0 when none is stored
func (s *Store) Load(ctx context.Context) (int, error) {
	position, found, err := s.mysql.GetSyncCursor(ctx, s.name)
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor %q: %w", s.name, err)
	}
	if !found {
		return 0, nil
	}

	s.logger.WithFields(logrus.Fields{
		"cursor":   s.name,
		"position": position,
	}).Debug("Loaded cursor")

	return position, nil
}

// Save writes the cursor value
func (s *Store) Save(ctx context.Context, position int) error {
	if position < 0 {
		return fmt.Errorf("cursor position must be non-negative, got %d", position)
	}

	if err := s.mysql.SetSyncCursor(ctx, s.name, position); err != nil {
		return fmt.Errorf("failed to write cursor %q: %w", s.name, err)
	}
	return nil
}

// Clear removes the cursor. Clearing an absent cursor is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.mysql.DeleteSyncCursor(ctx, s.name); err != nil {
		return fmt.Errorf("failed to clear cursor %q: %w", s.name, err)
	}
	return nil
}
