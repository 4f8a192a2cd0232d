package engine

import (
	"expvar"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/prevaldb/auth"
	"github.com/INLOpen/prevaldb/config"
	"github.com/INLOpen/prevaldb/core"
	"github.com/INLOpen/prevaldb/format"
	"github.com/INLOpen/prevaldb/hooks"
	"github.com/INLOpen/prevaldb/journal"
	"github.com/INLOpen/prevaldb/locking"
	"github.com/INLOpen/prevaldb/storage"
)

// Formatting selects which Formatter implementation backs the engine.
type Formatting string

const (
	FormattingDefault Formatting = "default"
	FormattingCustom  Formatting = "custom"
)

// Factory bindings for each pluggable role. Registering a custom factory
// switches the corresponding mode enum to its Custom value.
type (
	SynchronizerFactory func(lockTimeout time.Duration) (locking.Synchronizer, error)
	JournalFactory      func(cfg *Config) (journal.Interface, []core.Record, error)
	AuthorizerFactory   func() (auth.Authorizer, error)
	FormatterFactory    func() (format.Formatter, error)
	StorageFactory      func(name string) (storage.Storage, error)
)

// Config holds the per-engine-instance configuration. It is mutated only
// during the single-threaded setup phase and treated as read-only for the
// engine's running lifetime. The command journal may be created at most once
// per Config.
type Config struct {
	LockTimeout        time.Duration
	JournalSegmentSize int64
	JournalQueueDepth  int
	CloneCommands      bool
	CloneResults       bool
	// SnapshotEveryNCommands triggers a snapshot after that many applied
	// commands. Zero disables automatic snapshots.
	SnapshotEveryNCommands uint64
	Compression            core.CompressionType
	DataDir                string

	Synchronization   locking.Mode
	JournalWriterMode journal.WriterMode
	StorageType       storage.Type
	Formatting        Formatting

	Logger      *slog.Logger
	Tracer      trace.Tracer
	HookManager hooks.HookManager

	JournalBytesWritten   *expvar.Int
	JournalEntriesWritten *expvar.Int

	synchronizerFactory SynchronizerFactory
	journalFactory      JournalFactory
	authorizerFactory   AuthorizerFactory
	formatterFactory    FormatterFactory
	storageFactory      StorageFactory

	journalCreated atomic.Bool
}

// NewConfig returns a Config with the shipped defaults: a 30 second lock
// timeout, 1 MiB journal segments, defensive copies on both boundaries,
// shared-read/exclusive-write locking, a synchronous journal writer and
// file-system storage under ./data.
func NewConfig() *Config {
	return &Config{
		LockTimeout:        30 * time.Second,
		JournalSegmentSize: journal.DefaultMaxSegmentSize,
		CloneCommands:      true,
		CloneResults:       true,
		Compression:        core.CompressionNone,
		DataDir:            "./data",
		Synchronization:    locking.ModeReadWrite,
		JournalWriterMode:  journal.WriterSync,
		StorageType:        storage.TypeFileSystem,
		Formatting:         FormattingDefault,
	}
}

// ConfigFromFile builds a Config from a YAML file, applying the same
// defaults as NewConfig for anything the file omits.
func ConfigFromFile(path string) (*Config, error) {
	fileCfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	cfg := NewConfig()
	ec := fileCfg.Engine
	cfg.DataDir = ec.DataDir
	cfg.LockTimeout = config.ParseDuration(ec.LockTimeout, cfg.LockTimeout, cfg.Logger)
	cfg.CloneCommands = ec.CloneCommands
	cfg.CloneResults = ec.CloneResults
	cfg.SnapshotEveryNCommands = ec.Snapshot.EveryNCommands
	cfg.JournalSegmentSize = ec.Journal.SegmentSizeBytes
	cfg.JournalQueueDepth = ec.Journal.QueueDepth

	switch ec.Synchronization {
	case "", "readwrite":
		cfg.Synchronization = locking.ModeReadWrite
	case "exclusive":
		cfg.Synchronization = locking.ModeExclusive
	case "none":
		cfg.Synchronization = locking.ModeNone
	default:
		return nil, fmt.Errorf("unknown synchronization mode %q", ec.Synchronization)
	}

	switch ec.Journal.WriterMode {
	case "", "sync":
		cfg.JournalWriterMode = journal.WriterSync
	case "async":
		cfg.JournalWriterMode = journal.WriterAsync
	default:
		return nil, fmt.Errorf("unknown journal writer mode %q", ec.Journal.WriterMode)
	}

	switch ec.Storage {
	case "", "filesystem":
		cfg.StorageType = storage.TypeFileSystem
	case "none":
		cfg.StorageType = storage.TypeNone
	default:
		return nil, fmt.Errorf("unknown storage type %q", ec.Storage)
	}

	compression, err := config.ParseCompression(ec.Journal.Compression)
	if err != nil {
		return nil, err
	}
	cfg.Compression = compression

	return cfg, nil
}

// SetCustomSynchronizerFactory installs a caller-provided Synchronizer and
// switches the synchronization mode to Custom.
func (c *Config) SetCustomSynchronizerFactory(f SynchronizerFactory) {
	c.synchronizerFactory = f
	c.Synchronization = locking.ModeCustom
}

// SetCustomAuthorizerFactory installs a caller-provided Authorizer.
func (c *Config) SetCustomAuthorizerFactory(f AuthorizerFactory) {
	c.authorizerFactory = f
}

// SetCustomFormatterFactory installs a caller-provided Formatter and
// switches the formatting mode to Custom.
func (c *Config) SetCustomFormatterFactory(f FormatterFactory) {
	c.formatterFactory = f
	c.Formatting = FormattingCustom
}

// SetCustomStorageFactory installs a caller-provided Storage backend and
// switches the storage type to Custom. The factory is invoked once per
// store name ("journal", "snapshots").
func (c *Config) SetCustomStorageFactory(f StorageFactory) {
	c.storageFactory = f
	c.StorageType = storage.TypeCustom
}

// SetCustomJournalFactory installs a caller-provided command journal. It
// fails with core.ErrInvalidState once the journal has been created.
func (c *Config) SetCustomJournalFactory(f JournalFactory) error {
	if c.journalCreated.Load() {
		return fmt.Errorf("cannot replace journal factory after the journal was created: %w", core.ErrInvalidState)
	}
	c.journalFactory = f
	return nil
}

// NewCommandJournal materializes the command journal from this
// configuration. It may be called at most once per Config; a second call
// fails with core.ErrInvalidState without disturbing the first journal. The
// guard is atomic, so two racing first callers cannot both create one.
func (c *Config) NewCommandJournal() (journal.Interface, []core.Record, error) {
	if !c.journalCreated.CompareAndSwap(false, true) {
		return nil, nil, fmt.Errorf("command journal already created for this configuration: %w", core.ErrInvalidState)
	}
	if c.journalFactory != nil {
		return c.journalFactory(c)
	}

	store, err := c.NewStorage("journal")
	if err != nil {
		return nil, nil, err
	}
	return journal.Open(journal.Options{
		Storage:        store,
		MaxSegmentSize: c.JournalSegmentSize,
		WriterMode:     c.JournalWriterMode,
		QueueDepth:     c.JournalQueueDepth,
		Compression:    c.Compression,
		BytesWritten:   c.JournalBytesWritten,
		EntriesWritten: c.JournalEntriesWritten,
		Logger:         c.Logger,
		HookManager:    c.HookManager,
	})
}

// NewStorage creates a named store per the configured storage type.
func (c *Config) NewStorage(name string) (storage.Storage, error) {
	switch c.StorageType {
	case storage.TypeFileSystem:
		return storage.NewFileSystemStorage(filepath.Join(c.DataDir, name))
	case storage.TypeNone:
		return storage.NewNullStorage(), nil
	case storage.TypeCustom:
		if c.storageFactory == nil {
			return nil, fmt.Errorf("storage type is custom but no factory is registered: %w", core.ErrInvalidState)
		}
		return c.storageFactory(name)
	default:
		return nil, fmt.Errorf("unknown storage type %q", c.StorageType)
	}
}

// NewSynchronizer creates the synchronizer per the configured mode.
func (c *Config) NewSynchronizer() (locking.Synchronizer, error) {
	switch c.Synchronization {
	case locking.ModeReadWrite:
		return locking.NewReadWrite(c.LockTimeout), nil
	case locking.ModeExclusive:
		return locking.NewExclusive(c.LockTimeout), nil
	case locking.ModeNone:
		return locking.NewNone(), nil
	case locking.ModeCustom:
		if c.synchronizerFactory == nil {
			return nil, fmt.Errorf("synchronization mode is custom but no factory is registered: %w", core.ErrInvalidState)
		}
		return c.synchronizerFactory(c.LockTimeout)
	default:
		return nil, fmt.Errorf("unknown synchronization mode %q", c.Synchronization)
	}
}

// NewAuthorizer creates the authorizer. The shipped default allows every
// operation type not explicitly denied.
func (c *Config) NewAuthorizer() (auth.Authorizer, error) {
	if c.authorizerFactory != nil {
		return c.authorizerFactory()
	}
	return auth.NewPermissionTable(auth.PermissionAllowed, c.Logger), nil
}

// NewFormatter creates the formatter per the configured mode.
func (c *Config) NewFormatter() (format.Formatter, error) {
	switch c.Formatting {
	case FormattingDefault:
		return format.NewGobFormatter(), nil
	case FormattingCustom:
		if c.formatterFactory == nil {
			return nil, fmt.Errorf("formatting mode is custom but no factory is registered: %w", core.ErrInvalidState)
		}
		return c.formatterFactory()
	default:
		return nil, fmt.Errorf("unknown formatting mode %q", c.Formatting)
	}
}
