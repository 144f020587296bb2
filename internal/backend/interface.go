package backend

import (
	"context"

	"pmpv/internal/amqp"
	"pmpv/internal/services"
	"pmpv/internal/sheets"
	"pmpv/internal/sheets/google"
)

// ReportStore writes reports and reads them back by ref.
type ReportStore interface {
	sheets.ReportWriter
	sheets.ReportReader
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is a wired quarter service plus the adapters around it.
type BackendResult struct {
	Service *services.QuarterService

	// Publisher is nil when AMQP is not configured or unreachable.
	Publisher *amqp.Client

	// Files writes xlsx reports under the export directory.
	Files ReportStore

	// Google is nil unless a spreadsheet is configured.
	Google *google.Client

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// Empty URL disables result events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	ExportDir        string
	DefaultSuppliers []string

	// Credentials are read from the environment by the google package
	GoogleEnabled bool
}

// BackendType represents the type of session store
type BackendType string

const (
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
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
