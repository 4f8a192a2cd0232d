// Package hooks lets embedding code observe and, for pre-events, veto
// engine activity without touching call sites.
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/INLOpen/prevaldb/core"
)

// EventType defines the type of a hook event.
type EventType string

const (
	// Command lifecycle events.
	EventPreCommand  EventType = "PreCommand"
	EventPostCommand EventType = "PostCommand"

	// Journal events.
	EventPostJournalRotate   EventType = "PostJournalRotate"
	EventPostJournalRecovery EventType = "PostJournalRecovery"

	// Snapshot events.
	EventPostSnapshot EventType = "PostSnapshot"
)

// HookManager defines the interface for managing and triggering hooks.
type HookManager interface {
	// Register adds a listener for a specific event type.
	Register(eventType EventType, listener HookListener)
	// Trigger fires all registered listeners for a given event.
	Trigger(ctx context.Context, event HookEvent) error
	// Stop waits for all asynchronous listeners to complete.
	Stop()
}

// HookEvent is the interface that all event objects must implement.
type HookEvent interface {
	Type() EventType
	Payload() interface{}
}

// HookListener defines the interface for components that listen to events.
type HookListener interface {
	// OnEvent is called by the HookManager when a registered event is
	// triggered. Returning an error from a "Pre" hook cancels the
	// operation; errors from "Post" hooks are logged only.
	OnEvent(ctx context.Context, event HookEvent) error
	// Priority returns the listener's priority. Lower numbers are executed first.
	Priority() int
	// IsAsync indicates if the listener should be called asynchronously for Post-events.
	IsAsync() bool
}

// BaseEvent provides a base implementation for HookEvent.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
}

func (e *BaseEvent) Type() EventType      { return e.eventType }
func (e *BaseEvent) Payload() interface{} { return e.payload }

// PreCommandPayload carries the command about to be journaled and applied.
// The arguments pointer lets a pre-hook inspect or adjust them before
// journaling.
type PreCommandPayload struct {
	Name string
	Args *any
}

func NewPreCommandEvent(payload PreCommandPayload) HookEvent {
	return &BaseEvent{eventType: EventPreCommand, payload: payload}
}

// PostCommandPayload carries the outcome of an applied command.
type PostCommandPayload struct {
	Record core.Record
	Error  error
}

func NewPostCommandEvent(payload PostCommandPayload) HookEvent {
	return &BaseEvent{eventType: EventPostCommand, payload: payload}
}

// PostJournalRotatePayload contains information about a journal rotation.
type PostJournalRotatePayload struct {
	OldSegmentIndex uint64
	NewSegmentIndex uint64
}

func NewPostJournalRotateEvent(payload PostJournalRotatePayload) HookEvent {
	return &BaseEvent{eventType: EventPostJournalRotate, payload: payload}
}

// PostJournalRecoveryPayload contains information about a completed recovery.
type PostJournalRecoveryPayload struct {
	RecoveredRecordCount int
}

func NewPostJournalRecoveryEvent(payload PostJournalRecoveryPayload) HookEvent {
	return &BaseEvent{eventType: EventPostJournalRecovery, payload: payload}
}

// PostSnapshotPayload contains information about a taken snapshot.
type PostSnapshotPayload struct {
	SeqNum uint64
	Name   string
}

func NewPostSnapshotEvent(payload PostSnapshotPayload) HookEvent {
	return &BaseEvent{eventType: EventPostSnapshot, payload: payload}
}

// listenerWithPriority wraps a listener with its priority for ordered dispatch.
type listenerWithPriority struct {
	listener HookListener
	priority int
}

// DefaultHookManager is a concrete implementation of HookManager.
type DefaultHookManager struct {
	listeners map[EventType][]*listenerWithPriority
	mu        sync.RWMutex
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewHookManager creates a new DefaultHookManager.
func NewHookManager(logger *slog.Logger) HookManager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DefaultHookManager{
		listeners: make(map[EventType][]*listenerWithPriority),
		logger:    logger,
	}
}

// Register adds a listener for a specific event type, maintaining priority order.
func (m *DefaultHookManager) Register(eventType EventType, listener HookListener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &listenerWithPriority{listener: listener, priority: listener.Priority()}
	l := m.listeners[eventType]
	idx := sort.Search(len(l), func(i int) bool {
		return l[i].priority >= item.priority
	})
	l = append(l, nil)
	copy(l[idx+1:], l[idx:])
	l[idx] = item
	m.listeners[eventType] = l
}

// Trigger fires all registered listeners for a given event in priority order.
// Pre-hooks always run synchronously so they can cancel the operation.
func (m *DefaultHookManager) Trigger(ctx context.Context, event HookEvent) error {
	m.mu.RLock()
	listeners, ok := m.listeners[event.Type()]
	m.mu.RUnlock()

	if !ok || len(listeners) == 0 {
		return nil
	}

	isPreHook := strings.HasPrefix(string(event.Type()), "Pre")

	for _, item := range listeners {
		if isPreHook || !item.listener.IsAsync() {
			if err := item.listener.OnEvent(ctx, event); err != nil {
				if isPreHook {
					return fmt.Errorf("pre-hook for event %s (priority %d) failed: %w", event.Type(), item.priority, err)
				}
				m.logger.Error("Error from synchronous post-hook listener", "event", event.Type(), "priority", item.priority, "error", err)
			}
		} else {
			m.wg.Add(1)
			go func(currentItem *listenerWithPriority) {
				defer m.wg.Done()
				if err := currentItem.listener.OnEvent(ctx, event); err != nil {
					m.logger.Error("Error from asynchronous post-hook listener", "event", event.Type(), "priority", currentItem.priority, "error", err)
				}
			}(item)
		}
	}
	return nil
}

// Stop waits for all asynchronous listeners to complete.
func (m *DefaultHookManager) Stop() {
	m.wg.Wait()
}
