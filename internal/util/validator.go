package util

import (
	"errors"
	"net/mail"
	"strings"
)

// ValidateEmail retorna error para correos inválidos.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("correo obligatorio")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errors.New("correo inválido")
	}
	return nil
}

// ValidatePassword verifica requisitos mínimos de contraseña.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("la contraseña debe tener al menos 8 caracteres")
	}
	return nil
}

// RequireString garantiza string no vacío.
func RequireString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(field + " obligatorio")
	}
	return nil
}
