package sdk

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultRetries es el presupuesto de reintentos de las lecturas.
// Las mutaciones nunca reintentan.
const DefaultRetries = 2

// Backoff devuelve la espera previa al reintento con índice attempt:
// min(1000 * 2^attempt, 30000) milisegundos.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return 30 * time.Second
	}
	ms := 1000 << attempt
	if ms > 30000 {
		ms = 30000
	}
	return time.Duration(ms) * time.Millisecond
}

// FetchFunc produce el valor de una clave de lectura.
type FetchFunc func(ctx context.Context) (any, error)

// QueryOptions gobierna la vida de una entrada de cache.
type QueryOptions struct {
	// StaleTime es la ventana de frescura: datos más jóvenes se sirven
	// sin red; más viejos se sirven igual pero disparan revalidación.
	StaleTime time.Duration
	// Retention es la vida máxima de la entrada: pasada esa ventana se
	// descarta y la lectura vuelve a la red. Cero significa no guardar
	// nada.
	Retention time.Duration
	// Retries son los reintentos adicionales tras el primer fallo.
	// Negativo desactiva los reintentos; cero usa DefaultRetries.
	Retries int
}

func (o QueryOptions) retries() int {
	if o.Retries < 0 {
		return 0
	}
	if o.Retries == 0 {
		return DefaultRetries
	}
	return o.Retries
}

type cacheEntry struct {
	value     any
	fetchedAt time.Time
	invalid   bool
}

type flight struct {
	done  chan struct{}
	value any
	err   error
}

// Store es la cache de lecturas con revalidación en segundo plano.
// Una sola búsqueda en vuelo por clave; los demás lectores esperan o
// sirven el valor viejo según su ventana de frescura.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	inflight map[string]*flight

	// reemplazables en tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewStore() *Store {
	return &Store{
		entries:  make(map[string]*cacheEntry),
		inflight: make(map[string]*flight),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Query resuelve una clave de lectura:
//   - entrada fresca: se sirve de cache sin tocar la red
//   - entrada vieja pero válida: se sirve, y se revalida en segundo plano
//   - entrada ausente, invalidada o más vieja que Retention: búsqueda
//     bloqueante con reintentos
func (s *Store) Query(ctx context.Context, key string, opts QueryOptions, fetch FetchFunc) (any, error) {
	s.mu.Lock()

	if opts.Retention > 0 {
		if e, ok := s.entries[key]; ok && !e.invalid {
			age := s.now().Sub(e.fetchedAt)
			switch {
			case age > opts.Retention:
				// Expirada: se descarta y la lectura baja a la red.
				delete(s.entries, key)
			case age <= opts.StaleTime:
				value := e.value
				s.mu.Unlock()
				return value, nil
			default:
				// Sirve el valor viejo y revalida por detrás.
				value := e.value
				s.revalidateLocked(key, opts, fetch)
				s.mu.Unlock()
				return value, nil
			}
		}
	}

	// Sin valor utilizable: comparte la búsqueda en vuelo si existe.
	if f, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.done:
			return f.value, f.err
		}
	}

	f := &flight{done: make(chan struct{})}
	s.inflight[key] = f
	s.mu.Unlock()

	value, err := s.fetchWithRetry(ctx, opts, fetch)

	s.mu.Lock()
	delete(s.inflight, key)
	if err == nil && opts.Retention > 0 {
		s.entries[key] = &cacheEntry{value: value, fetchedAt: s.now()}
	}
	s.mu.Unlock()

	f.value, f.err = value, err
	close(f.done)
	return value, err
}

// revalidateLocked lanza una búsqueda en segundo plano si no hay otra
// en vuelo para la clave. Se llama con el lock tomado.
func (s *Store) revalidateLocked(key string, opts QueryOptions, fetch FetchFunc) {
	if _, ok := s.inflight[key]; ok {
		return
	}

	f := &flight{done: make(chan struct{})}
	s.inflight[key] = f

	go func() {
		value, err := s.fetchWithRetry(context.Background(), opts, fetch)

		s.mu.Lock()
		delete(s.inflight, key)
		if err == nil {
			s.entries[key] = &cacheEntry{value: value, fetchedAt: s.now()}
		}
		s.mu.Unlock()

		f.value, f.err = value, err
		close(f.done)
	}()
}

func (s *Store) fetchWithRetry(ctx context.Context, opts QueryOptions, fetch FetchFunc) (any, error) {
	retries := opts.retries()

	var lastErr error
	for attempt := 0; ; attempt++ {
		value, err := fetch(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt >= retries {
			break
		}
		if err := s.sleep(ctx, Backoff(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Set sobrescribe una clave con un valor recién confirmado por el
// servidor (write-through tras una mutación).
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &cacheEntry{value: value, fetchedAt: s.now()}
}

// Get devuelve el valor cacheado bajo la clave, si hay uno válido.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.invalid {
		return nil, false
	}
	return e.value, true
}

// Drop elimina la clave por completo.
func (s *Store) Drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// InvalidatePrefix marca como inválida toda clave con el prefijo dado.
// La próxima lectura de esas claves fuerza una ida a la red.
func (s *Store) InvalidatePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) {
			e.invalid = true
		}
	}
}

// mutationEffect declara los efectos de cache de una mutación: la clave
// de detalle a sobrescribir y los prefijos a invalidar. La tabla vive en
// cache.go; el despachador es único para que ninguna mutación olvide su
// invalidación.
type mutationEffect struct {
	detailKey  string
	dropDetail bool
	invalidate []string
}

// applyMutation aplica los efectos en orden: primero el write-through
// del detalle, después la cascada de invalidación. Un lector que
// consulte el detalle inmediatamente después de la mutación nunca ve un
// estado intermedio.
func (s *Store) applyMutation(effect mutationEffect, value any) {
	if effect.detailKey != "" {
		if effect.dropDetail {
			s.Drop(effect.detailKey)
		} else if value != nil {
			s.Set(effect.detailKey, value)
		}
	}
	for _, prefix := range effect.invalidate {
		s.InvalidatePrefix(prefix)
	}
}
