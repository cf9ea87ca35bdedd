package backend

import (
	"context"

	"spendboard/internal/auth"
	"spendboard/internal/sheets"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// SourceResult holds the record source and its optional cleanup
type SourceResult struct {
	Source  sheets.RecordSource
	Cleanup CleanupFunc
}

// IdentityResult holds the credential store and its optional cleanup
type IdentityResult struct {
	Store   auth.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateSource(ctx context.Context, config Config) (*SourceResult, error)
	CreateIdentityStore(ctx context.Context, config Config) (*IdentityResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Data     DataBackend
	Identity IdentityBackend

	// Memory source: <DataDirectory>/<sheet>.csv seeds each sheet
	DataDirectory    string
	ExpensesSheet    string
	InvestmentsSheet string

	// Google Sheets source
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// SQLite identity store
	SQLiteDBPath string
}

// DataBackend selects where spreadsheet rows come from
type DataBackend string

const (
	SheetsData DataBackend = "sheets"
	MemoryData DataBackend = "memory"
)

func (b DataBackend) String() string { return string(b) }

func (b DataBackend) IsValid() bool {
	switch b {
	case SheetsData, MemoryData:
		return true
	default:
		return false
	}
}

// IdentityBackend selects where password hashes are kept
type IdentityBackend string

const (
	MemoryIdentity IdentityBackend = "memory"
	SQLiteIdentity IdentityBackend = "sqlite"
)

func (b IdentityBackend) String() string { return string(b) }

func (b IdentityBackend) IsValid() bool {
	switch b {
	case MemoryIdentity, SQLiteIdentity:
		return true
	default:
		return false
	}
}
