package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonerolima/kobopay/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func TestVerifyPin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{PinHash: string(hash)}

	assert.NoError(t, verifyPin(user, "1234"))
	assert.ErrorIs(t, verifyPin(user, "4321"), domain.ErrInvalidPin)
	assert.ErrorIs(t, verifyPin(user, ""), domain.ErrInvalidPin)

	// A user with no stored pin can never pass the check.
	assert.ErrorIs(t, verifyPin(&domain.User{}, "1234"), domain.ErrInvalidPin)
}
