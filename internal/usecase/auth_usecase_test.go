package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthValidator struct {
	err error
}

func (v stubAuthValidator) ValidateRegister(ctx context.Context, email, username, password string) error {
	return v.err
}

func (v stubAuthValidator) ValidateLogin(ctx context.Context, email, password string) error {
	return v.err
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	db := newMemDB()
	ctx := context.Background()
	now := time.Now()
	u := NewAuthUsecase("secret", memUsers{db}, stubAuthValidator{}, fixedClock{now}, nil)

	reg, err := u.Register(ctx, AuthRegisterRequest{Email: " alice@example.com ", Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", reg.User.Email)

	_, err = u.Register(ctx, AuthRegisterRequest{Email: "alice@example.com", Username: "alice", Password: "password123"})
	assert.ErrorIs(t, err, ErrConflict)

	res, err := u.Login(ctx, AuthLoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, int(accessTokenTTL.Seconds()), res.Token.ExpiresIn)

	tok, err := jwt.Parse(res.Token.AccessToken, func(t *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(reg.User.ID), claims["sub"])
	assert.Equal(t, float64(0), claims["tv"])

	stored, err := memUsers{db}.FindByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestAuth_LoginFailures(t *testing.T) {
	db := newMemDB()
	ctx := context.Background()
	u := NewAuthUsecase("secret", memUsers{db}, stubAuthValidator{}, nil, nil)

	_, err := u.Register(ctx, AuthRegisterRequest{Email: "alice@example.com", Username: "alice", Password: "password123"})
	require.NoError(t, err)

	_, err = u.Login(ctx, AuthLoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = u.Login(ctx, AuthLoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	bad := NewAuthUsecase("secret", memUsers{db}, stubAuthValidator{err: errors.New("invalid input")}, nil, nil)
	_, err = bad.Login(ctx, AuthLoginRequest{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuth_Me(t *testing.T) {
	db := newMemDB()
	ctx := context.Background()
	u := NewAuthUsecase("secret", memUsers{db}, stubAuthValidator{}, nil, nil)

	reg, err := u.Register(ctx, AuthRegisterRequest{Email: "bob@example.com", Username: "bob", Password: "password123"})
	require.NoError(t, err)

	me, err := u.Me(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", me.Username)

	_, err = u.Me(ctx, 9999)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = u.Me(ctx, 0)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
