package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenachess/backend/internal/domain"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.Generate(domain.UserID(42), "magnus", time.Minute)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(42), claims.UserID)
	assert.Equal(t, "magnus", claims.Username)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a")
	verifier := NewManager("secret-b")

	token, err := issuer.Generate(domain.UserID(1), "anna", time.Minute)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewManager("test-secret")

	token, err := m.Generate(domain.UserID(1), "anna", -time.Minute)
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret")

	_, err := m.Validate("not-a-token")
	assert.Error(t, err)
}
