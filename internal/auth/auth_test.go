package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/autohaul/autohaul-api/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.User{}))
	return NewService(db, "test-secret", time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)

	user, token, err := svc.Register(Credentials{Username: "jane", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAgent, user.Role)
	assert.NotEmpty(t, token.AccessToken)

	user, token, err = svc.Login(Credentials{Username: "jane", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "jane", user.Username)
	assert.NotEmpty(t, token.AccessToken)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Register(Credentials{Username: "jane", Password: "hunter2"})
	require.NoError(t, err)

	_, _, err = svc.Register(Credentials{Username: "jane", Password: "other"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Register(Credentials{Username: "jane", Password: "hunter2"})
	require.NoError(t, err)

	_, _, err = svc.Login(Credentials{Username: "jane", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Login(Credentials{Username: "ghost", Password: "whatever"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)

	user, token, err := svc.Register(Credentials{Username: "jane", Password: "hunter2"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token.AccessToken)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, types.RoleAgent, claims.Role)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	svc := newTestService(t)

	_, token, err := svc.Register(Credentials{Username: "jane", Password: "hunter2"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token.AccessToken + "x")
	assert.Error(t, err)
}

func TestPasswordsAreHashed(t *testing.T) {
	svc := newTestService(t)

	user, _, err := svc.Register(Credentials{Username: "jane", Password: "hunter2"})
	require.NoError(t, err)

	assert.NotEqual(t, "hunter2", user.PasswordHash)
	assert.NotContains(t, user.PasswordHash, "hunter2")
}
