package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

func newUserService(t *testing.T) *UserService {
	return NewUserService(setupTestDB(t), utils.NewTokenSigner("test-secret", time.Hour))
}

func TestRegisterAndLogin(t *testing.T) {
	s := newUserService(t)
	ctx := context.Background()

	user, err := s.Register(ctx, RegisterInput{Name: "Lan", Email: "Lan@Example.com", Password: "secret1", Role: models.RoleCashier})
	require.NoError(t, err)
	assert.Equal(t, "lan@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.Password)

	_, err = s.Register(ctx, RegisterInput{Name: "Lan", Email: "lan@example.com", Password: "secret1"})
	assertKind(t, err, utils.KindPersistence)

	_, err = s.Login(ctx, "lan@example.com", "wrong")
	assertKind(t, err, utils.KindUnauthorized)
	_, err = s.Login(ctx, "nobody@example.com", "secret1")
	assertKind(t, err, utils.KindUnauthorized)

	res, err := s.Login(ctx, " LAN@example.com ", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	verified, err := s.Verify(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.Equal(t, models.RoleCashier, verified.Role)

	s.Logout(res.Token)
	_, err = s.Verify(ctx, res.Token)
	assertKind(t, err, utils.KindUnauthorized)
}

func TestRegisterValidation(t *testing.T) {
	s := newUserService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"})
	assertKind(t, err, utils.KindValidation)
	_, err = s.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "123"})
	assertKind(t, err, utils.KindValidation)
	_, err = s.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1", Role: "owner"})
	assertKind(t, err, utils.KindValidation)

	user, err := s.Register(ctx, RegisterInput{Name: "A", Email: "a@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, user.Role)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	s := newUserService(t)
	_, err := s.Verify(context.Background(), "not.a.token")
	assertKind(t, err, utils.KindUnauthorized)

	other := utils.NewTokenSigner("other-secret", time.Hour)
	token, err := other.GenerateToken(1, models.RoleAdmin)
	require.NoError(t, err)
	_, err = s.Verify(context.Background(), token)
	assertKind(t, err, utils.KindUnauthorized)
}
