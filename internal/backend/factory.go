package backend

import (
	"context"
	"fmt"

	"spendboard/internal/auth"
	"spendboard/internal/log"
	gsheet "spendboard/internal/sheets/google"
	"spendboard/internal/sheets/memory"
	"spendboard/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateSource implements Factory.CreateSource
func (f *DefaultFactory) CreateSource(ctx context.Context, config Config) (*SourceResult, error) {
	switch config.Data {
	case SheetsData:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets source")
		return &SourceResult{Source: cli}, nil

	case MemoryData:
		dir := config.DataDirectory
		if dir == "" {
			dir = "data"
		}
		store, err := memory.NewFromDir(dir, config.ExpensesSheet, config.InvestmentsSheet)
		if err != nil {
			return nil, fmt.Errorf("failed to seed memory source: %w", err)
		}
		f.logger.Info("Initialized memory source", "data_directory", dir)
		return &SourceResult{Source: store}, nil

	default:
		return nil, fmt.Errorf("unsupported data backend: %q", config.Data)
	}
}

// CreateIdentityStore implements Factory.CreateIdentityStore
func (f *DefaultFactory) CreateIdentityStore(ctx context.Context, config Config) (*IdentityResult, error) {
	switch config.Identity {
	case SQLiteIdentity:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		users, err := repo.Count(ctx)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("failed to read users table: %w", err)
		}
		f.logger.Info("Initialized SQLite identity store", "db_path", config.SQLiteDBPath, "users", users)
		return &IdentityResult{Store: repo, Cleanup: repo.Close}, nil

	case MemoryIdentity:
		f.logger.Info("Initialized in-memory identity store")
		return &IdentityResult{Store: auth.NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("unsupported identity backend: %q", config.Identity)
	}
}
