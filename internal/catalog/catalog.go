package catalog

import (
	"context"
	"fmt"

	"github.com/candle-sync/internal/database"
	"github.com/candle-sync/pkg/models"
	"github.com/sirupsen/logrus"
)

// Source produces the ordered instrument snapshot a sync run iterates over.
// The order is fixed (category, then symbol) so that a resumed run walks
// the same sequence as the run that wrote the checkpoint.
type Source struct {
	mysql  *database.MySQLClient
	logger *logrus.Entry
}

// NewSource creates a catalog source backed by MySQL
func NewSource(mysql *database.MySQLClient, logger *logrus.Logger) *Source {
	return &Source{
		mysql:  mysql,
		logger: logger.WithField("component", "catalog"),
	}
}

// Snapshot loads all active instruments in iteration order.
// An empty catalog is not an error, the run just has nothing to do.
func (s *Source) Snapshot(ctx context.Context) ([]*models.Instrument, error) {
	instruments, err := s.mysql.GetActiveInstruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	s.logger.WithField("count", len(instruments)).Debug("Loaded catalog snapshot")
	return instruments, nil
}
