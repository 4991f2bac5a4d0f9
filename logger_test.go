package accounts_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func TestResolveLoggerPrefersProvider(t *testing.T) {
	fromProvider := &captureLogger{}
	direct := &captureLogger{}
	spy := &loggerProviderSpy{logger: fromProvider}

	provider, logger := accounts.ResolveLogger("accounts.manager", spy, direct)
	assert.Same(t, spy, provider)
	assert.Same(t, fromProvider, logger)
	assert.Equal(t, []string{"accounts.manager"}, spy.names)
}

func TestResolveLoggerFallsBackToDirectLogger(t *testing.T) {
	direct := &captureLogger{}

	provider, logger := accounts.ResolveLogger("accounts.audit", &loggerProviderSpy{}, direct)
	assert.Same(t, direct, logger)
	require.NotNil(t, provider)
}

func TestResolveLoggerDefault(t *testing.T) {
	provider, logger := accounts.ResolveLogger("accounts.session", nil, nil)
	require.NotNil(t, provider)
	require.NotNil(t, logger)
}

func TestManagerLoggerProviderOption(t *testing.T) {
	logger := &captureLogger{}
	spy := &loggerProviderSpy{logger: logger}

	f := newFixture(t, accounts.WithManagerLoggerProvider(spy))
	_, _, err := f.manager.Bootstrap(context.Background(), accounts.Identity{ID: "uid-first-0001", Email: "first@pcu.edu.ph"})
	require.NoError(t, err)

	assert.Contains(t, spy.names, "accounts.manager")
	assert.Len(t, logger.byLevel("info"), 1)
	assert.Empty(t, f.logger.byLevel("info"))
}
