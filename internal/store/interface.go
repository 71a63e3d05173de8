package store

import (
	"context"

	"orderflow/internal/store/model"
	"orderflow/internal/types"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	// Commit commits the transaction.
	Commit() error
	// Rollback rolls back the transaction.
	Rollback() error

	// Securities returns the security repository within this transaction.
	Securities() SecurityRepository
	// Logs returns the seed log repository within this transaction.
	Logs() LogRepository
}

// Store is the entry point for database access.
type Store interface {
	// Begin starts a new UnitOfWork (transaction).
	Begin(ctx context.Context) (UnitOfWork, error)
	// Close closes the store connection.
	Close() error
}

// SecurityRepository handles the securities reference table.
type SecurityRepository interface {
	// Query returns every row whose (symbol, venue) matches any of keys.
	Query(ctx context.Context, keys []types.Key) ([]types.SecurityDefinition, error)
	Upsert(ctx context.Context, rows []model.SecurityModel) error
	List(ctx context.Context, venue string) ([]model.SecurityModel, error)
	// DeleteMissing removes rows of venue whose key is not in keep.
	DeleteMissing(ctx context.Context, venue string, keep []types.Key) (int64, error)
}

// LogRepository records seed loads per seed file path.
type LogRepository interface {
	InsertSeedLoad(ctx context.Context, entry *model.SeedLoadModel) error
	// ListSeedLoads returns newest first; an empty path lists every file.
	ListSeedLoads(ctx context.Context, path string, limit int) ([]model.SeedLoadModel, error)
	LastSeedLoad(ctx context.Context, path string) (model.SeedLoadModel, bool, error)
}
