// Package auth decides, per declared operation type, whether an operation
// may execute. It is consulted for every command and query after
// classification and strictly before any lock is taken or the journal is
// touched.
package auth

import (
	"io"
	"log/slog"
)

// Permission is the two-valued policy associated with an operation's
// declared type.
type Permission int

const (
	PermissionDenied Permission = iota
	PermissionAllowed
)

// String returns the string representation of the Permission.
func (p Permission) String() string {
	if p == PermissionAllowed {
		return "allowed"
	}
	return "denied"
}

// Authorizer maps an operation's declared type to a Permission.
type Authorizer interface {
	IsAllowed(operationType string) bool
}

// PermissionTable is the default Authorizer: a type-keyed permission table
// with a configurable default. It is populated during the single-threaded
// setup phase and treated as read-only afterwards, so no locking is needed
// on the lookup path.
type PermissionTable struct {
	defaultPermission Permission
	permissions       map[string]Permission
	logger            *slog.Logger
}

var _ Authorizer = (*PermissionTable)(nil)

// NewPermissionTable creates a table where every type not explicitly listed
// resolves to the given default.
func NewPermissionTable(defaultPermission Permission, logger *slog.Logger) *PermissionTable {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PermissionTable{
		defaultPermission: defaultPermission,
		permissions:       make(map[string]Permission),
		logger:            logger.With("component", "Authorizer"),
	}
}

// Allow grants the given operation types.
func (t *PermissionTable) Allow(operationTypes ...string) *PermissionTable {
	for _, ot := range operationTypes {
		t.permissions[ot] = PermissionAllowed
	}
	return t
}

// Deny revokes the given operation types.
func (t *PermissionTable) Deny(operationTypes ...string) *PermissionTable {
	for _, ot := range operationTypes {
		t.permissions[ot] = PermissionDenied
	}
	return t
}

func (t *PermissionTable) IsAllowed(operationType string) bool {
	perm, ok := t.permissions[operationType]
	if !ok {
		perm = t.defaultPermission
	}
	if perm == PermissionDenied {
		t.logger.Warn("Operation type denied by permission table.", "operation_type", operationType)
		return false
	}
	return true
}
