package util

import (
	"sort"
	"strings"
)

// FieldErrors acumula mensajes de validación por campo.
type FieldErrors map[string][]string

// Add registra un mensaje para un campo.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// HasErrors indica si hay al menos un mensaje registrado.
func (f FieldErrors) HasErrors() bool {
	return len(f) > 0
}

// Error junta los mensajes con claves en orden alfabético.
func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(f[k], ", "))
	}
	return strings.Join(parts, "; ")
}
