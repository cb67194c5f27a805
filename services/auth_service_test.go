package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/tombola/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newMemUserRepo(), testSecret, time.Hour)

	user, err := svc.Register(ctx, RegisterInput{
		Username: "nonna",
		Name:     "Nonna Pina",
		Email:    "pina@example.com",
		Password: "tombola90",
	}, models.RoleUser)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Empty(t, user.PasswordHash)

	token, loggedIn, err := svc.Login(ctx, models.Credentials{Username: "nonna", Password: "tombola90"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.Empty(t, loggedIn.PasswordHash)

	parsed, err := jwt.Parse(token, func(tk *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(user.ID), claims["user_id"])
	assert.Equal(t, "user", claims["role"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newMemUserRepo(), testSecret, time.Hour)
	_, err := svc.Register(ctx, RegisterInput{Username: "zio", Email: "zio@example.com", Password: "panettone"}, models.RoleAdmin)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, models.Credentials{Username: "zio", Password: "pandoro!"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	_, _, err = svc.Login(ctx, models.Credentials{Username: "nobody", Password: "panettone"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(newMemUserRepo(), testSecret, time.Hour)
	_, err := svc.Register(ctx, RegisterInput{Username: "zia", Email: "zia@example.com", Password: "abcdefgh"}, models.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name  string
		input RegisterInput
		role  models.UserRole
		want  error
	}{
		{"short password", RegisterInput{Username: "a", Email: "a@example.com", Password: "short"}, models.RoleUser, ErrValidationFailed},
		{"missing email", RegisterInput{Username: "a", Password: "longenough"}, models.RoleUser, ErrValidationFailed},
		{"unknown role", RegisterInput{Username: "a", Email: "a@example.com", Password: "longenough"}, "croupier", ErrValidationFailed},
		{"taken username", RegisterInput{Username: "zia", Email: "other@example.com", Password: "longenough"}, models.RoleUser, ErrUsernameConflict},
		{"taken email", RegisterInput{Username: "other", Email: "zia@example.com", Password: "longenough"}, models.RoleUser, ErrEmailConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.input, tt.role)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
