package store

import (
	"context"
	"errors"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for weavegit.
type Store interface {
	// Repositories
	SaveRepository(ctx context.Context, r *models.TrackedRepository) error
	GetRepository(ctx context.Context, id string) (*models.TrackedRepository, error)
	GetRepositoryByPath(ctx context.Context, path string) (*models.TrackedRepository, error)
	ListRepositories(ctx context.Context) ([]*models.TrackedRepository, error)
	DeleteRepository(ctx context.Context, id string) error

	// Resolution history
	AddResolutionRecord(ctx context.Context, rec *models.ResolutionRecord) error
	ListResolutionRecords(ctx context.Context, limit int) ([]models.ResolutionRecord, error)

	// Learned patterns
	ReplacePatterns(ctx context.Context, patterns []models.ConflictPattern) error
	ListPatterns(ctx context.Context) ([]models.ConflictPattern, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
