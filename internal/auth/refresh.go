package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRefresh se retorna cuando el token de refresh es inválido o expiró.
	ErrInvalidRefresh = errors.New("refresh token inválido")
)

// GenerateRefreshToken crea un token aleatorio seguro y su hash persistible.
func GenerateRefreshToken() (raw string, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashRefreshToken(raw)
	return raw, hashed, nil
}

// HashRefreshToken produce un hash SHA-256 en base64.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshRedisKey arma la clave única para guardar el estado del refresh.
func RefreshRedisKey(audience, hash string) string {
	return fmt.Sprintf("refresh:%s:%s", audience, hash)
}
