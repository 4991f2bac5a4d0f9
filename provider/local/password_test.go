package local_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-accounts/provider/local"
)

func TestHashPassword(t *testing.T) {
	hash, err := local.HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	require.NoError(t, local.ComparePasswordAndHash("secret1", hash))
	require.ErrorIs(t, local.ComparePasswordAndHash("secret2", hash), local.ErrMismatchedPassword)

	_, err = local.HashPassword("", bcrypt.MinCost)
	require.Error(t, err)
}

func TestHashPasswordOutOfRangeCost(t *testing.T) {
	hash, err := local.HashPassword("secret1", 1)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
