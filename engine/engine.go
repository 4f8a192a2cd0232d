// Package engine orchestrates the prevalent execution pipeline: every named
// operation is classified, authorized, synchronized, journaled (commands
// only) and applied to the in-memory model, with defensive copies at the
// boundaries. The journaled command stream plus the latest snapshot is the
// database; recovery replays one on top of the other.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/INLOpen/prevaldb/auth"
	"github.com/INLOpen/prevaldb/core"
	"github.com/INLOpen/prevaldb/dispatch"
	"github.com/INLOpen/prevaldb/format"
	"github.com/INLOpen/prevaldb/hooks"
	"github.com/INLOpen/prevaldb/journal"
	"github.com/INLOpen/prevaldb/locking"
	"github.com/INLOpen/prevaldb/snapshot"
)

// Engine is the prevalent system. It owns the model: after construction all
// access to the model must go through Execute so that synchronization,
// journaling and defensive copying cannot be bypassed.
type Engine struct {
	cfg      *Config
	model    any
	registry *dispatch.Registry

	logger      *slog.Logger
	tracer      trace.Tracer
	hookManager hooks.HookManager

	synchronizer locking.Synchronizer
	authorizer   auth.Authorizer
	formatter    format.Formatter
	journal      journal.Interface
	snapshots    *snapshot.Manager

	// seqNum is the sequence number of the last journaled command. Guarded
	// by the write side of the synchronizer.
	seqNum                  uint64
	commandsSinceSnapshot   uint64
	recoveredRecordsApplied int
}

// New builds an engine around the given model and operation registry,
// restores the latest snapshot and replays the journaled commands recorded
// after it. The returned engine is ready to execute operations.
func New(model any, registry *dispatch.Registry, cfg *Config) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("engine requires a model")
	}
	if registry == nil {
		return nil, fmt.Errorf("engine requires an operation registry")
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("prevaldb")
	}

	e := &Engine{
		cfg:         cfg,
		model:       model,
		registry:    registry,
		logger:      logger.With("component", "PrevalentEngine"),
		tracer:      tracer,
		hookManager: cfg.HookManager,
	}

	var err error
	if e.synchronizer, err = cfg.NewSynchronizer(); err != nil {
		return nil, err
	}
	if e.authorizer, err = cfg.NewAuthorizer(); err != nil {
		return nil, err
	}
	if e.formatter, err = cfg.NewFormatter(); err != nil {
		return nil, err
	}

	snapStore, err := cfg.NewStorage("snapshots")
	if err != nil {
		return nil, err
	}
	e.snapshots, err = snapshot.NewManager(snapshot.Options{
		Storage:     snapStore,
		Formatter:   e.formatter,
		Compression: cfg.Compression,
		Logger:      logger,
		HookManager: cfg.HookManager,
	})
	if err != nil {
		return nil, err
	}

	j, recovered, err := cfg.NewCommandJournal()
	if err != nil {
		// A partial recovery hands back an open journal with the error;
		// release its active segment before bailing out.
		if j != nil {
			j.Close()
		}
		return nil, err
	}
	e.journal = j

	if err := e.recover(recovered); err != nil {
		j.Close()
		return nil, err
	}
	return e, nil
}

// recover restores the latest snapshot into the model and replays every
// journaled command whose sequence number lies beyond the snapshot
// watermark. Handler errors during replay are deterministic, the command
// already failed the same way when it was journaled live, so they are
// logged and skipped; a payload that no longer decodes is fatal.
func (e *Engine) recover(recovered []core.Record) error {
	watermark, err := e.snapshots.Restore(e.model)
	if err != nil {
		return fmt.Errorf("snapshot restore failed: %w", err)
	}
	e.seqNum = watermark

	for _, rec := range recovered {
		if rec.SeqNum <= watermark {
			continue
		}
		op, err := e.registry.Resolve(rec.Name)
		if err != nil {
			return fmt.Errorf("replay of command %d: %w", rec.SeqNum, err)
		}
		if op.Kind != core.OpCommand {
			return fmt.Errorf("replay of command %d: %q is journaled but registered as %s", rec.SeqNum, rec.Name, op.Kind)
		}

		var args any
		if len(rec.Payload) > 0 && op.NewArgs != nil {
			args = op.NewArgs()
			if err := e.formatter.Unmarshal(rec.Payload, args); err != nil {
				return fmt.Errorf("replay of command %d (%q): failed to decode arguments: %w", rec.SeqNum, rec.Name, err)
			}
		}

		if _, err := op.Handler(e.model, args); err != nil {
			e.logger.Warn("Replayed command failed, skipping.", "seq_num", rec.SeqNum, "name", rec.Name, "error", err)
		}
		e.seqNum = rec.SeqNum
		e.recoveredRecordsApplied++
	}

	if e.recoveredRecordsApplied > 0 || watermark > 0 {
		e.logger.Info("Recovery complete.", "snapshot_seq_num", watermark, "replayed_commands", e.recoveredRecordsApplied)
	}
	return nil
}

// Execute runs a named operation against the model. Commands are journaled
// before they are applied; queries run under the shared read guard and touch
// no storage. The returned value is a defensive copy unless result cloning
// is disabled.
func (e *Engine) Execute(ctx context.Context, name string, args any) (any, error) {
	ctx, span := e.tracer.Start(ctx, "PrevalentEngine.Execute",
		trace.WithAttributes(attribute.String("prevaldb.operation", name)))
	defer span.End()

	result, err := e.execute(ctx, name, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (e *Engine) execute(ctx context.Context, name string, args any) (any, error) {
	op, err := e.registry.Resolve(name)
	if err != nil {
		return nil, err
	}

	// Rejection and authorization both happen before any guard is taken; a
	// denied caller must not be able to delay legitimate ones.
	if op.Kind == core.OpNotAllowed {
		return nil, fmt.Errorf("operation %q: %w", name, core.ErrNotAllowed)
	}
	if !e.authorizer.IsAllowed(op.Type) {
		return nil, fmt.Errorf("operation %q (type %q): %w", name, op.Type, core.ErrNotAuthorized)
	}

	if op.Kind == core.OpQuery {
		return e.executeQuery(ctx, op, args)
	}
	return e.executeCommand(ctx, op, args)
}

func (e *Engine) executeQuery(ctx context.Context, op *dispatch.Operation, args any) (any, error) {
	guard, err := e.synchronizer.AcquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	result, err := op.Handler(e.model, args)
	if err != nil {
		return nil, err
	}
	return e.cloneResult(op.Name, result)
}

func (e *Engine) executeCommand(ctx context.Context, op *dispatch.Operation, args any) (any, error) {
	guard, err := e.synchronizer.AcquireWrite(ctx)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	if e.hookManager != nil {
		payload := hooks.PreCommandPayload{Name: op.Name, Args: &args}
		if err := e.hookManager.Trigger(ctx, hooks.NewPreCommandEvent(payload)); err != nil {
			return nil, err
		}
	}

	// The defensive copy happens before journaling: the handler must apply
	// a value the caller cannot mutate afterwards, and the journaled payload
	// must describe exactly what was applied.
	if e.cfg.CloneCommands {
		if args, err = format.Clone(e.formatter, op.Name, args); err != nil {
			return nil, err
		}
	}

	var payload []byte
	if args != nil {
		if payload, err = e.formatter.Marshal(args); err != nil {
			return nil, fmt.Errorf("failed to serialize arguments for command %q: %w", op.Name, err)
		}
	}

	rec := core.Record{
		SeqNum:    e.seqNum + 1,
		CommandID: uuid.NewString(),
		Name:      op.Name,
		Payload:   payload,
	}
	if _, err := e.journal.Append(rec); err != nil {
		// Nothing was applied; the model is exactly as it was.
		return nil, fmt.Errorf("failed to journal command %q: %w", op.Name, err)
	}
	e.seqNum = rec.SeqNum

	result, applyErr := op.Handler(e.model, args)

	if e.hookManager != nil {
		payload := hooks.PostCommandPayload{Record: rec, Error: applyErr}
		e.hookManager.Trigger(ctx, hooks.NewPostCommandEvent(payload))
	}
	if applyErr != nil {
		return nil, applyErr
	}

	e.commandsSinceSnapshot++
	if e.cfg.SnapshotEveryNCommands > 0 && e.commandsSinceSnapshot >= e.cfg.SnapshotEveryNCommands {
		e.snapshotLocked()
	}

	return e.cloneResult(op.Name, result)
}

func (e *Engine) cloneResult(opName string, result any) (any, error) {
	if !e.cfg.CloneResults || result == nil {
		return result, nil
	}
	return format.Clone(e.formatter, opName, result)
}

// snapshotLocked takes a snapshot and truncates the journal up to it. The
// caller holds the write guard. A failure is logged but does not fail the
// command that triggered it; the journal still holds everything.
func (e *Engine) snapshotLocked() {
	if err := e.takeSnapshotLocked(); err != nil {
		e.logger.Error("Automatic snapshot failed.", "seq_num", e.seqNum, "error", err)
		return
	}
	e.commandsSinceSnapshot = 0
}

func (e *Engine) takeSnapshotLocked() error {
	if err := e.journal.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal before snapshot: %w", err)
	}
	if err := e.snapshots.Take(e.model, e.seqNum); err != nil {
		return err
	}
	if err := e.journal.Rotate(); err != nil {
		return fmt.Errorf("failed to rotate journal after snapshot: %w", err)
	}
	active := e.journal.ActiveSegmentIndex()
	if active > 1 {
		if err := e.journal.Purge(active - 1); err != nil {
			e.logger.Warn("Failed to purge journal segments after snapshot.", "up_to_index", active-1, "error", err)
		}
	}
	return nil
}

// TakeSnapshot forces a snapshot of the current model state under the write
// guard, then rotates and purges the journal behind it.
func (e *Engine) TakeSnapshot(ctx context.Context) error {
	guard, err := e.synchronizer.AcquireWrite(ctx)
	if err != nil {
		return err
	}
	defer guard.Release()

	if err := e.takeSnapshotLocked(); err != nil {
		return err
	}
	e.commandsSinceSnapshot = 0
	return nil
}

// Sync blocks until every journaled command so far is durable. With the
// synchronous writer this is a no-op beyond an fsync of the active segment;
// with the async writer it acts as a queue barrier.
func (e *Engine) Sync() error {
	return e.journal.Sync()
}

// CommandJournal exposes the underlying journal for inspection.
func (e *Engine) CommandJournal() journal.Interface {
	return e.journal
}

// RecoveredCommandCount reports how many journaled commands were replayed
// during construction. Intended for diagnostics.
func (e *Engine) RecoveredCommandCount() int {
	return e.recoveredRecordsApplied
}

// Close releases the journal and waits for any in-flight asynchronous hook
// listeners to finish. The engine must not be used afterwards.
func (e *Engine) Close() error {
	err := e.journal.Close()
	if e.hookManager != nil {
		e.hookManager.Stop()
	}
	e.logger.Info("Engine closed.")
	return err
}
