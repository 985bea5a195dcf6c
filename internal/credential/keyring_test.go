package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringRoundTrip(t *testing.T) {
	k := newWithRing(keyring.NewArrayKeyring(nil))

	_, err := k.Get("account-1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Set("account-1", "hunter2"))
	got, err := k.Get("account-1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.NoError(t, k.Delete("account-1"))
	_, err = k.Get("account-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, k.Delete("account-1"), "deleting twice")
}

func TestKeyringSatisfiesStore(t *testing.T) {
	var s Store = NewKeyring()
	assert.NotNil(t, s)
}
