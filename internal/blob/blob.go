// Package blob is the single entry point to blob storage. Callers depend on
// Store and open a backend with Open; only this package imports the backends.
package blob

import (
	"context"
	"fmt"

	"tissuecore/internal/blob/core"
	"tissuecore/internal/infra/blob/fs"
	"tissuecore/internal/infra/blob/memory"
	infraS3 "tissuecore/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes a stored blob.
	Info = core.Info
	// Store is implemented by every backend.
	Store = core.Store
	// S3Config configures the s3 driver.
	S3Config = infraS3.Config
)

// Supported drivers.
const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the backend cfg names. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return fs.New(cfg.FSRoot)
	case DriverMemory:
		return memory.New(), nil
	case DriverS3:
		return infraS3.New(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memory.New() }

// NewFakeS3 returns an s3 store backed by an in-process fake, for tests.
func NewFakeS3(ctx context.Context) (Store, error) { return infraS3.NewFake(ctx) }
