package stats

import (
	"context"

	"github.com/neurodash/neurodash/internal/analysis"
)

type Repository interface {
	CountPatients(ctx context.Context) (int, error)
	CountDoctors(ctx context.Context) (int, error)
	CountSessions(ctx context.Context) (int, error)
	CountSessionsByStatus(ctx context.Context) (map[analysis.Status]int, error)
}
