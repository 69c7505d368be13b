package backend

import (
	"context"
	"io"
	"time"

	"gastos/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionLister returns every transaction of a user.
	TransactionLister interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	// TransactionUpdater edits the amount and payment method of a transaction.
	TransactionUpdater interface {
		UpdateTransaction(ctx context.Context, id string, u core.TransactionUpdate) error
	}

	// TransactionDeleter removes a transaction.
	TransactionDeleter interface {
		DeleteTransaction(ctx context.Context, id string) error
	}

	// PreferencesStore persists dashboard preferences per user.
	PreferencesStore interface {
		GetPreferences(ctx context.Context, userID string) (core.Preferences, error)
		SavePreferences(ctx context.Context, userID string, p core.Preferences) error
	}

	// Pinger reports whether the backend can serve requests.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// CSVExporter streams an export produced by the data source itself.
	// Backends without one get a locally rendered export.
	CSVExporter interface {
		ExportCSV(ctx context.Context) (*Export, error)
	}
)

// Export is a CSV document ready to be streamed to a client.
type Export struct {
	Filename string
	Body     io.ReadCloser
}

// Backend represents a unified backend interface that provides all necessary operations
type Backend interface {
	TransactionLister
	TransactionUpdater
	TransactionDeleter
	PreferencesStore
	Pinger
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Upstream API, used by the api backend and for sqlite write-through
	APIBaseURL string
	APITimeout time.Duration
	Location   *time.Location

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	APIBackend    BackendType = "api"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
