package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/prevaldb/core"
)

func noopHandler(model any, args any) (any, error) { return nil, nil }

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry(DefaultQuery)
	require.NoError(t, r.RegisterCommand("Deposit", func() any { return new(int) }, noopHandler))
	require.NoError(t, r.RegisterQuery("Balance", noopHandler))

	op, err := r.Resolve("Deposit")
	require.NoError(t, err)
	assert.Equal(t, core.OpCommand, op.Kind)
	assert.Equal(t, "Deposit", op.Type, "authorization type defaults to the operation name")

	op, err = r.Resolve("Balance")
	require.NoError(t, err)
	assert.Equal(t, core.OpQuery, op.Kind)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry(DefaultQuery)

	_, err := r.Resolve("Missing")
	assert.ErrorIs(t, err, core.ErrUnknownOperation)
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	r := NewRegistry(DefaultQuery)
	require.NoError(t, r.RegisterQuery("Balance", noopHandler))

	err := r.RegisterCommand("Balance", nil, noopHandler)
	assert.Error(t, err, "re-registering an operation under a different kind must fail")
}

func TestRegistry_DefaultPolicy(t *testing.T) {
	r := NewRegistry(DefaultQuery)
	require.NoError(t, r.Register("Peek", noopHandler))
	op, err := r.Resolve("Peek")
	require.NoError(t, err)
	assert.Equal(t, core.OpQuery, op.Kind, "undeclared members default to query")

	r = NewRegistry(DefaultNotAllowed)
	require.NoError(t, r.Register("Peek", noopHandler))
	op, err = r.Resolve("Peek")
	require.NoError(t, err)
	assert.Equal(t, core.OpNotAllowed, op.Kind, "strict policy rejects undeclared members")
}

func TestRegistry_NotAllowedWins(t *testing.T) {
	r := NewRegistry(DefaultQuery)
	r.MarkNotAllowed("Wipe")

	// A later registration must not resurrect the operation.
	require.NoError(t, r.RegisterCommand("Wipe", nil, noopHandler))

	op, err := r.Resolve("Wipe")
	require.NoError(t, err)
	assert.Equal(t, core.OpNotAllowed, op.Kind)
}

func TestRegistry_DeclareType(t *testing.T) {
	r := NewRegistry(DefaultQuery)
	require.NoError(t, r.RegisterCommand("Deposit", nil, noopHandler))
	require.NoError(t, r.DeclareType("Deposit", "write"))

	op, err := r.Resolve("Deposit")
	require.NoError(t, err)
	assert.Equal(t, "write", op.Type)

	err = r.DeclareType("Missing", "write")
	assert.ErrorIs(t, err, core.ErrUnknownOperation)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry(DefaultQuery)
	require.NoError(t, r.RegisterQuery("A", noopHandler))
	require.NoError(t, r.RegisterQuery("B", noopHandler))

	assert.ElementsMatch(t, []string{"A", "B"}, r.Names())
}
