package format

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/prevaldb/core"
)

type account struct {
	Owner   string
	Balance int64
	Tags    []string
}

type selfCloner struct {
	Value int
}

func (c *selfCloner) CloneValue() (any, error) {
	return &selfCloner{Value: c.Value}, nil
}

type failingCloner struct{}

func (c *failingCloner) CloneValue() (any, error) {
	return nil, errors.New("cannot copy")
}

func TestClone_StructPointer(t *testing.T) {
	f := NewGobFormatter()
	original := &account{Owner: "alice", Balance: 100, Tags: []string{"vip"}}

	cloned, err := Clone(f, "TestOp", original)
	require.NoError(t, err)

	dup, ok := cloned.(*account)
	require.True(t, ok, "pointer-ness must be preserved")
	assert.Equal(t, original, dup)

	// The copy must not share backing storage with the original.
	dup.Tags[0] = "mutated"
	dup.Balance = 0
	assert.Equal(t, "vip", original.Tags[0])
	assert.Equal(t, int64(100), original.Balance)
}

func TestClone_PlainValue(t *testing.T) {
	f := NewGobFormatter()

	cloned, err := Clone(f, "TestOp", account{Owner: "bob", Balance: 7})
	require.NoError(t, err)

	dup, ok := cloned.(account)
	require.True(t, ok, "a value in yields a value out")
	assert.Equal(t, "bob", dup.Owner)
}

func TestClone_Nil(t *testing.T) {
	cloned, err := Clone(NewGobFormatter(), "TestOp", nil)
	require.NoError(t, err)
	assert.Nil(t, cloned)
}

func TestClone_ClonerFastPath(t *testing.T) {
	// The formatter must never be touched when the value clones itself.
	cloned, err := Clone(nil, "TestOp", &selfCloner{Value: 42})
	require.NoError(t, err)

	dup, ok := cloned.(*selfCloner)
	require.True(t, ok)
	assert.Equal(t, 42, dup.Value)
}

func TestClone_ClonerFailure(t *testing.T) {
	_, err := Clone(nil, "TestOp", &failingCloner{})
	require.Error(t, err)

	var cloneErr *core.CloneError
	require.True(t, errors.As(err, &cloneErr))
	assert.Equal(t, "TestOp", cloneErr.Op)
	assert.True(t, core.IsCloneError(err))
}

func TestClone_UnserializableValue(t *testing.T) {
	type holder struct {
		C chan int
	}
	_, err := Clone(NewGobFormatter(), "TestOp", &holder{C: make(chan int)})
	require.Error(t, err)
	assert.True(t, core.IsCloneError(err), "formatter failures surface as CloneError")
}

func TestGobFormatter_RoundTrip(t *testing.T) {
	f := NewGobFormatter()

	data, err := f.Marshal(&account{Owner: "carol", Balance: 3})
	require.NoError(t, err)

	var decoded account
	require.NoError(t, f.Unmarshal(data, &decoded))
	assert.Equal(t, "carol", decoded.Owner)
	assert.Equal(t, int64(3), decoded.Balance)
}
