package service

import (
	"alcyxob/workout-planner/internal/repository/memory"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	store := memory.NewStore()
	svc := NewAuthService(store.Users(), "test-secret", time.Hour)
	ctx := context.Background()
	email := gofakeit.Email()
	password := gofakeit.Password(true, true, true, false, false, 12)

	user, err := svc.Register(ctx, gofakeit.Name(), "  "+strings.ToUpper(email)+" ", password)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(email), user.Email)
	assert.Empty(t, user.PasswordHash)

	stored, err := store.Users().GetByEmail(ctx, strings.ToLower(email))
	require.NoError(t, err)
	assert.NotEqual(t, password, stored.PasswordHash)

	_, err = svc.Register(ctx, gofakeit.Name(), email, password)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	token, loggedIn, err := svc.Login(ctx, email, password)
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	uid, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), uid)

	_, _, err = svc.Login(ctx, email, password+"x")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, _, err = svc.Login(ctx, gofakeit.Email(), password)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc := NewAuthService(memory.NewStore().Users(), "test-secret", time.Hour)
	ctx := context.Background()

	tests := []struct {
		name, userName, email, password string
	}{
		{"missing name", " ", gofakeit.Email(), "long-enough"},
		{"bad email", "Ana", "not-an-email", "long-enough"},
		{"short password", "Ana", gofakeit.Email(), "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.userName, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthService_ParseToken(t *testing.T) {
	store := memory.NewStore()
	svc := NewAuthService(store.Users(), "test-secret", time.Minute)
	ctx := context.Background()
	email := gofakeit.Email()
	_, err := svc.Register(ctx, gofakeit.Name(), email, "long-enough")
	require.NoError(t, err)

	// tokens issued an hour ago have expired
	svc.(*authService).now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _, err := svc.Login(ctx, email, "long-enough")
	require.NoError(t, err)
	_, err = svc.ParseToken(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.(*authService).now = time.Now
	token, _, err := svc.Login(ctx, email, "long-enough")
	require.NoError(t, err)

	other := NewAuthService(store.Users(), "another-secret", time.Minute)
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewAuthService_EmptySecretPanics(t *testing.T) {
	assert.Panics(t, func() { NewAuthService(memory.NewStore().Users(), "", time.Hour) })
}
