package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1000 * time.Millisecond},
		{1, 2000 * time.Millisecond},
		{2, 4000 * time.Millisecond},
		{3, 8000 * time.Millisecond},
		{4, 16000 * time.Millisecond},
		{5, 30000 * time.Millisecond},
		{10, 30000 * time.Millisecond},
		{-1, 1000 * time.Millisecond},
	}

	for _, tc := range tests {
		if got := Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

// newTestStore congela el reloj y anula las esperas de reintento.
func newTestStore() (*Store, *time.Time) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore()
	s.now = func() time.Time { return now }
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s, &now
}

func TestQueryFreshServedFromCache(t *testing.T) {
	s, _ := newTestStore()
	opts := QueryOptions{StaleTime: 30 * time.Second, Retention: 5 * time.Minute}

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	for i := 0; i < 3; i++ {
		value, err := s.Query(context.Background(), "k", opts, fetch)
		if err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
		if value != "v1" {
			t.Fatalf("query %d: got %v", i, value)
		}
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}
}

func TestQueryStaleServesOldValueAndRevalidates(t *testing.T) {
	s, now := newTestStore()
	opts := QueryOptions{StaleTime: 30 * time.Second, Retention: 5 * time.Minute}

	var calls int32
	fetched := make(chan struct{}, 2)
	fetch := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		fetched <- struct{}{}
		if n == 1 {
			return "v1", nil
		}
		return "v2", nil
	}

	if _, err := s.Query(context.Background(), "k", opts, fetch); err != nil {
		t.Fatal(err)
	}
	<-fetched

	*now = now.Add(time.Minute)

	value, err := s.Query(context.Background(), "k", opts, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if value != "v1" {
		t.Fatalf("stale read should serve old value, got %v", value)
	}

	// La revalidación corre por detrás; espera a que termine.
	select {
	case <-fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("background revalidation never ran")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if v, ok := s.Get("k"); ok && v == "v2" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cache never updated with revalidated value")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQueryRetentionZeroAlwaysFetches(t *testing.T) {
	s, _ := newTestStore()
	opts := QueryOptions{StaleTime: 0, Retention: 0}

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	for i := 1; i <= 3; i++ {
		value, err := s.Query(context.Background(), "stats", opts, fetch)
		if err != nil {
			t.Fatal(err)
		}
		if value != int32(i) {
			t.Fatalf("read %d: expected fresh fetch, got %v", i, value)
		}
	}
	if _, ok := s.Get("stats"); ok {
		t.Fatal("retention zero must not retain anything")
	}
}

func TestQueryRetentionExpiryEvicts(t *testing.T) {
	s, now := newTestStore()
	opts := QueryOptions{StaleTime: 30 * time.Second, Retention: 5 * time.Minute}

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		return fmt.Sprintf("v%d", atomic.AddInt32(&calls, 1)), nil
	}

	if _, err := s.Query(context.Background(), "k", opts, fetch); err != nil {
		t.Fatal(err)
	}

	// Más allá de la retención la entrada deja de servirse, ni siquiera
	// como valor viejo.
	*now = now.Add(6 * time.Minute)

	value, err := s.Query(context.Background(), "k", opts, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if value != "v2" {
		t.Fatalf("expired entry must not be served, got %v", value)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected 2 fetches, got %d", n)
	}
}

func TestQueryRetriesWithBudget(t *testing.T) {
	s, _ := newTestStore()

	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("boom")
		}
		return "ok", nil
	}

	value, err := s.Query(context.Background(), "k", QueryOptions{Retention: time.Minute}, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if value != "ok" {
		t.Fatalf("got %v", value)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("unexpected backoff sequence %v", slept)
	}
}

func TestQueryExhaustedBudgetReturnsLastError(t *testing.T) {
	s, _ := newTestStore()

	var calls int32
	wantErr := errors.New("boom")
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, wantErr
	}

	_, err := s.Query(context.Background(), "k", QueryOptions{Retention: time.Minute}, fetch)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected boom, got %v", err)
	}
	// 1 intento + 2 reintentos del presupuesto.
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestQuerySingleFlight(t *testing.T) {
	s, _ := newTestStore()

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := s.Query(context.Background(), "k", QueryOptions{Retention: time.Minute}, fetch)
			if err != nil || value != "v" {
				t.Errorf("got %v, %v", value, err)
			}
		}()
	}

	// Da tiempo a que todos los lectores se cuelguen de la misma búsqueda.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single in-flight fetch, got %d", n)
	}
}

func TestInvalidatePrefixForcesRefetch(t *testing.T) {
	s, _ := newTestStore()
	opts := QueryOptions{StaleTime: time.Hour, Retention: time.Hour}

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		return atomic.AddInt32(&calls, 1), nil
	}

	if _, err := s.Query(context.Background(), "programas:list:estado=:page=1", opts, fetch); err != nil {
		t.Fatal(err)
	}
	s.InvalidatePrefix("programas:list")

	value, err := s.Query(context.Background(), "programas:list:estado=:page=1", opts, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if value != int32(2) {
		t.Fatalf("invalidated key must refetch, got %v", value)
	}
}

func TestApplyMutationWritesThroughBeforeInvalidating(t *testing.T) {
	s, _ := newTestStore()

	s.Set("programas:detail:abc", "old")
	s.Set("programas:list:estado=:page=1", "page1")

	s.applyMutation(mutationEffect{
		detailKey:  "programas:detail:abc",
		invalidate: []string{keyProgramasList, keyProgramasStats},
	}, "new")

	// El detalle queda fresco; las listas quedan marcadas.
	if v, ok := s.Get("programas:detail:abc"); !ok || v != "new" {
		t.Fatalf("detail not written through, got %v ok=%v", v, ok)
	}
	if _, ok := s.Get("programas:list:estado=:page=1"); ok {
		t.Fatal("list key should be invalidated")
	}
}

func TestApplyMutationDropDetail(t *testing.T) {
	s, _ := newTestStore()

	s.Set("programas:detail:abc", "old")
	s.applyMutation(mutationEffect{
		detailKey:  "programas:detail:abc",
		dropDetail: true,
		invalidate: []string{keyProgramasList},
	}, nil)

	if _, ok := s.Get("programas:detail:abc"); ok {
		t.Fatal("deleted detail should be gone")
	}
}
