package credential

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupPrefersEnvironment(t *testing.T) {
	env := map[string]string{"ANTHROPIC_API_KEY": "from-env"}
	getenv := func(k string) string { return env[k] }
	ring := func(string) (string, error) { return "from-keyring", nil }

	assert.Equal(t, "from-env", lookup(KeyAnthropicAPI, getenv, ring))
	assert.Equal(t, "from-keyring", lookup(KeyIMAPPassword, getenv, ring))
}

func TestLookupMissingEverywhere(t *testing.T) {
	getenv := func(string) string { return "" }
	ring := func(string) (string, error) { return "", errors.New("not found") }

	assert.Empty(t, lookup(KeyRedisPassword, getenv, ring))
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(KeyPostgresDSN))
	assert.False(t, Known("jira-token"))
}
