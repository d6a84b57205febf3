package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/fluxa/internal/domain/entity"
)

type recorded struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeES answers like an Elasticsearch node and records each request.
type fakeES struct {
	mu      sync.Mutex
	reqs    []recorded
	handler func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &rec.Body)
	}
	f.mu.Lock()
	f.reqs = append(f.reqs, rec)
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.handler(w, r)
}

func (f *fakeES) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

func newIndex(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*IdentityIndex, *fakeES) {
	t.Helper()
	fake := &fakeES{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIdentityIndex(es, "identities"), fake
}

func TestIndex_UpsertsByID(t *testing.T) {
	x, fake := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := x.Index(context.Background(), entity.IdentityDocument{ID: 42, Email: "ada@x.com", DisplayName: "Ada"})
	require.NoError(t, err)

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/identities/_doc/42", req.Path)
	assert.Equal(t, "ada@x.com", req.Body["email"])
	assert.Equal(t, "Ada", req.Body["display_name"])
}

func TestIndex_ErrorResponse(t *testing.T) {
	x, _ := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception","reason":"failed to parse"},"status":400}`))
	})

	err := x.Index(context.Background(), entity.IdentityDocument{ID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestSearch_MultiMatch(t *testing.T) {
	x, fake := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[
			{"_source":{"id":1,"email":"ada@x.com","display_name":"Ada"}},
			{"_source":{"id":2,"email":"adam@x.com","display_name":"Adam"}}
		]}}`))
	})

	hits, err := x.Search(context.Background(), "ada", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ID)
	assert.Equal(t, "Adam", hits[1].DisplayName)

	req := fake.last()
	assert.Equal(t, "/identities/_search", req.Path)
	assert.EqualValues(t, 5, req.Body["size"])
	mm := req.Body["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "ada", mm["query"])
	assert.Equal(t, []any{"email^2", "display_name"}, mm["fields"])
}

func TestSearch_ServerError(t *testing.T) {
	x, _ := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := x.Search(context.Background(), "ada", 5)
	assert.Error(t, err)
}

func TestEnsureIndex(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		x, fake := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		require.NoError(t, x.EnsureIndex(context.Background()))
		assert.Equal(t, http.MethodHead, fake.last().Method)
	})

	t.Run("created", func(t *testing.T) {
		x, fake := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		})
		require.NoError(t, x.EnsureIndex(context.Background()))

		req := fake.last()
		assert.Equal(t, http.MethodPut, req.Method)
		assert.Equal(t, "/identities", req.Path)
		assert.Contains(t, req.Body, "mappings")
	})
}
