package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/meishi/internal/model"
)

const (
	minPasswordLength = 8
	// bcryptは72バイトを超える入力を扱えない
	maxPasswordBytes = 72
)

// validatePassword は登録時のパスワード要件を検証する。
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return model.NewInvalidInputError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return model.NewInvalidInputError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// hashPassword はパスワードのbcryptハッシュを返す。
func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// checkPassword はパスワードがハッシュと一致するかを返す。
// ハッシュが空（OAuthのみのユーザー）の場合は常に不一致とする。
func checkPassword(hash, password string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
	return true, nil
}
