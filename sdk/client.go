// Package sdk es el cliente Go del backend de subsidios de vivienda.
// Envuelve la superficie REST con accesores tipados, una capa de cache
// con revalidación en segundo plano y las reglas de presentación que
// comparten los paneles administrativos.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError describe un fallo HTTP con mensaje extraído del cuerpo.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client habla con el backend. No reintenta: la política de reintentos
// pertenece a la capa de cache.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   string
	headers map[string]string
}

// Option configura el cliente.
type Option func(*Client)

// WithHTTPClient reemplaza el *http.Client subyacente.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithToken fija el token Bearer inicial.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHeader agrega un header por defecto a toda petición.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   http.DefaultClient,
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken actualiza el token Bearer tras un login o refresh.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Do ejecuta una petición JSON. Los headers del llamador ganan sobre los
// del cliente. Decodifica el éxito en out (si out no es nil) y convierte
// todo status fuera de 2xx en *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("codificar cuerpo: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Status:  resp.StatusCode,
			Message: extractErrorMessage(resp.StatusCode, raw),
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decodificar respuesta: %w", err)
	}
	return nil
}

// extractErrorMessage sondea el cuerpo de error en orden: detail,
// message, error, y por último el mapa errors unido por campo. Si nada
// aplica cae en "API error: <status>".
func extractErrorMessage(status int, raw []byte) string {
	fallback := fmt.Sprintf("API error: %d", status)
	if len(raw) == 0 {
		return fallback
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return fallback
	}

	for _, field := range []string{"detail", "message", "error"} {
		if msg := stringifyValue(body[field]); msg != "" {
			return msg
		}
	}

	if errs, ok := body["errors"].(map[string]any); ok && len(errs) > 0 {
		if msg := joinFieldErrors(raw); msg != "" {
			return msg
		}
	}

	return fallback
}

// joinFieldErrors une el objeto errors como "campo: m1, m2; campo2: m3"
// respetando el orden de los campos en el documento. Un mapa de Go no
// conserva ese orden, así que se recorre el flujo de tokens.
func joinFieldErrors(raw []byte) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return ""
		}
		key, ok := keyTok.(string)
		if !ok {
			return ""
		}
		if key != "errors" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return ""
			}
			continue
		}

		if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
			return ""
		}
		var parts []string
		for dec.More() {
			fieldTok, err := dec.Token()
			if err != nil {
				return ""
			}
			field, _ := fieldTok.(string)
			var value any
			if err := dec.Decode(&value); err != nil {
				return ""
			}
			if msg := stringifyValue(value); msg != "" {
				parts = append(parts, field+": "+msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func stringifyValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringifyValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}
