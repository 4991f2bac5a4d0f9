package local

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-key"), "accounts", time.Hour)
	issuer.now = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }

	identity := accounts.Identity{ID: "uid-1", Email: "staff@pcu.edu.ph", EmailVerified: true, DisplayName: "Staff"}
	token, expires, err := issuer.Issue(identity)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), expires)

	got, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestTokenIssuerExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	issuer := NewTokenIssuer([]byte("test-key"), "accounts", time.Hour)
	issuer.now = func() time.Time { return now }

	token, _, err := issuer.Issue(accounts.Identity{ID: "uid-1"})
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = issuer.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuerRejectsForeignTokens(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-key"), "accounts", 0)
	assert.Equal(t, 24*time.Hour, issuer.ttl)

	other := NewTokenIssuer([]byte("test-key"), "someone-else", time.Hour)
	token, _, err := other.Issue(accounts.Identity{ID: "uid-1"})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Equal(t, ErrTokenMalformed.TextCode, textCode(err))

	wrongKey := NewTokenIssuer([]byte("other-key"), "accounts", time.Hour)
	token, _, err = wrongKey.Issue(accounts.Identity{ID: "uid-1"})
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.Equal(t, ErrTokenMalformed.TextCode, textCode(err))

	_, err = issuer.Verify("not.a.token")
	assert.Equal(t, ErrTokenMalformed.TextCode, textCode(err))
}

func textCode(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ""
	}
	return rich.TextCode
}
