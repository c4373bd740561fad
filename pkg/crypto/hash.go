package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ============================================================
// Хеширование API-токена
//
// Токен не хранится в открытом виде: в окружении лежит bcrypt-хеш
// (API_TOKEN_HASH), сверка идёт через CompareHashAndPassword -
// constant-time, утечка конфига не раскрывает сам токен.
// ============================================================

var (
	ErrEmptyToken    = errors.New("token cannot be empty")
	ErrTokenMismatch = errors.New("token does not match hash")
	ErrInvalidHash   = errors.New("invalid token hash format")
	ErrTokenTooLong  = errors.New("token exceeds bcrypt limit of 72 bytes")
)

// DefaultCost - стоимость bcrypt для хеширования токена.
// Токен проверяется на каждом запросе, 12 - разумный потолок.
const DefaultCost = 12

// maxTokenLength - bcrypt обрезает вход после 72 байт
const maxTokenLength = 72

// HashToken хеширует API-токен для записи в API_TOKEN_HASH
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	if len(token) > maxTokenLength {
		return "", ErrTokenTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyToken сверяет токен с хешом
func VerifyToken(token, hash string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if hash == "" {
		return ErrInvalidHash
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrTokenMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// CheckTokenMatch - булева обёртка над VerifyToken для условий
func CheckTokenMatch(token, hash string) bool {
	return VerifyToken(token, hash) == nil
}
