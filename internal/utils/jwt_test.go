package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	token, err := GenerateAdminToken("secret", "finance@daris.app", time.Hour)
	require.NoError(t, err)

	subject, err := ParseAdminToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "finance@daris.app", subject)
}

func TestAdminTokenWrongSecret(t *testing.T) {
	token, err := GenerateAdminToken("secret", "finance@daris.app", time.Hour)
	require.NoError(t, err)

	_, err = ParseAdminToken("other-secret", token)
	assert.Error(t, err)
}

func TestAdminTokenExpired(t *testing.T) {
	token, err := GenerateAdminToken("secret", "finance@daris.app", -time.Minute)
	require.NoError(t, err)

	_, err = ParseAdminToken("secret", token)
	assert.Error(t, err)
}

func TestAdminTokenGarbage(t *testing.T) {
	_, err := ParseAdminToken("secret", "not-a-token")
	assert.Error(t, err)
}
