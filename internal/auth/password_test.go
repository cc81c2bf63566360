package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash("12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hashed, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.True(t, h.Matches(hashed, "secret1"))
	assert.False(t, h.Matches(hashed, "secret2"))
	assert.False(t, h.NeedsRehash(hashed))

	assert.True(t, NewHasher(bcrypt.MinCost+1).NeedsRehash(hashed))
	assert.True(t, h.NeedsRehash("not-a-hash"))
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(bcrypt.MaxCost+1).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}
