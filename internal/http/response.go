package http

import (
	"encoding/json"
	"net/http"
)

// WriteJSON escribe el payload tal cual, sin envoltorio.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteDetail escribe errores de autenticación y permiso como {"detail": ...}.
func WriteDetail(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{"detail": message})
}

// WriteError escribe errores generales como {"error": ...}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]any{"error": message})
}

// WriteFieldErrors escribe errores de validación por campo como {"errors": {...}}.
func WriteFieldErrors(w http.ResponseWriter, status int, fields map[string][]string) {
	WriteJSON(w, status, map[string]any{"errors": fields})
}
