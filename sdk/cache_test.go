package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// backend cuenta las idas reales a cada endpoint.
type backend struct {
	lists   int32
	stats   int32
	deletes int32
}

func newBackendServer(b *backend) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/programas/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.lists, 1)
		_ = json.NewEncoder(w).Encode(ProgramaPage{
			Count:   1,
			Results: []Programa{{ID: "p1", Nombre: "Subsidio Joven", Estado: EstadoActivo}},
		})
	})
	mux.HandleFunc("DELETE /api/programas/p1/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.deletes, 1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/usuarios/estadisticas/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.stats, 1)
		_ = json.NewEncoder(w).Encode(UsuarioEstadisticas{Total: 3, Activos: 2, Inactivos: 1})
	})
	return httptest.NewServer(mux)
}

func TestCacheListServedWithoutRefetch(t *testing.T) {
	b := &backend{}
	srv := newBackendServer(b)
	defer srv.Close()

	cache := NewCache(NewClient(srv.URL))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		page, err := cache.ListProgramas(ctx, "", 1)
		if err != nil {
			t.Fatalf("list %d: %v", i, err)
		}
		if page.Count != 1 || len(page.Results) != 1 {
			t.Fatalf("list %d: unexpected page %+v", i, page)
		}
	}

	if n := atomic.LoadInt32(&b.lists); n != 1 {
		t.Fatalf("expected 1 backend hit, got %d", n)
	}
}

func TestCacheDeleteInvalidatesList(t *testing.T) {
	b := &backend{}
	srv := newBackendServer(b)
	defer srv.Close()

	cache := NewCache(NewClient(srv.URL))
	ctx := context.Background()

	if _, err := cache.ListProgramas(ctx, "", 1); err != nil {
		t.Fatal(err)
	}
	if err := cache.EliminarPrograma(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.ListProgramas(ctx, "", 1); err != nil {
		t.Fatal(err)
	}

	if n := atomic.LoadInt32(&b.deletes); n != 1 {
		t.Fatalf("expected 1 delete, got %d", n)
	}
	if n := atomic.LoadInt32(&b.lists); n != 2 {
		t.Fatalf("delete must invalidate the list, expected 2 hits got %d", n)
	}
	if _, ok := cache.Store().Get(programaDetailKey("p1")); ok {
		t.Fatal("deleted programa must leave the cache")
	}
}

func TestCacheUsuarioStatsNeverCached(t *testing.T) {
	b := &backend{}
	srv := newBackendServer(b)
	defer srv.Close()

	cache := NewCache(NewClient(srv.URL))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		stats, err := cache.EstadisticasUsuarios(ctx)
		if err != nil {
			t.Fatalf("stats %d: %v", i, err)
		}
		if stats.Total != 3 {
			t.Fatalf("stats %d: unexpected %+v", i, stats)
		}
	}

	if n := atomic.LoadInt32(&b.stats); n != 3 {
		t.Fatalf("usuario stats must always hit the backend, got %d hits", n)
	}
}
