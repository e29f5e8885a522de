package validator

import (
	"context"
	"errors"

	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/go-playground/validator/v10"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")

	// emailが既に使用済み
	ErrEmailAlreadyUsed = errors.New("email already used")
)

type authValidator struct {
	users    repository.UserRepository
	validate *validator.Validate
}

// Usecaseは interface を依存注入
func NewAuthValidator(users repository.UserRepository) usecase.AuthValidator {
	return &authValidator{users: users, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// サインアップの入力を検証
func (v *authValidator) ValidateRegister(ctx context.Context, email string, username string, password string) error {
	in := usecase.AuthRegisterRequest{Email: email, Username: username, Password: password}
	if err := v.validate.StructCtx(ctx, in); err != nil {
		return ErrInvalidInput
	}

	// email重複チェック（DBが必要）
	u, err := v.users.FindByEmail(ctx, email)
	if err == nil && u != nil {
		return ErrEmailAlreadyUsed
	}

	return nil
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	in := usecase.AuthLoginRequest{Email: email, Password: password}
	if err := v.validate.StructCtx(ctx, in); err != nil {
		return ErrInvalidInput
	}
	return nil
}
