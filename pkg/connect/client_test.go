package connect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Run("idempotent across reruns", func(t *testing.T) {
		var mu sync.Mutex
		registered := map[string]bool{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/connectors", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var def Definition
			if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
				t.Errorf("decode submitted definition: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if registered[def.Name] {
				w.WriteHeader(http.StatusConflict)
				return
			}
			registered[def.Name] = true
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(def)
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL}, nil)
		def := Definition{
			Name: "pg-source",
			Config: map[string]string{
				"connector.class": "io.debezium.connector.postgresql.PostgresConnector",
			},
		}

		created, err := c.Register(context.Background(), def)
		require.NoError(t, err)
		assert.True(t, created, "first registration should create")

		created, err = c.Register(context.Background(), def)
		require.NoError(t, err)
		assert.False(t, created, "second registration should report already exists")
	})

	t.Run("unexpected status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error_code":500,"message":"boom"}`, http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL}, nil)
		_, err := c.Register(context.Background(), Definition{Name: "bad"})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Contains(t, apiErr.Body, "boom")
	})

	t.Run("missing name", func(t *testing.T) {
		c := NewClient(Config{URL: "http://localhost:1"}, nil)
		_, err := c.Register(context.Background(), Definition{})
		require.Error(t, err)
	})
}

func TestStatus(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/connectors/pg-source/status", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"name": "pg-source",
				"connector": {"state": "RUNNING", "worker_id": "connect:8083"},
				"tasks": [{"id": 0, "state": "RUNNING", "worker_id": "connect:8083"}],
				"type": "source"
			}`))
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL}, nil)
		st, err := c.Status(context.Background(), "pg-source")
		require.NoError(t, err)
		assert.Equal(t, "pg-source", st.Name)
		assert.Equal(t, StateRunning, st.Connector.State)
		require.Len(t, st.Tasks, 1)
		assert.Equal(t, 0, st.Tasks[0].ID)
		assert.True(t, st.Ready())
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error_code":404,"message":"no such connector"}`, http.StatusNotFound)
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL}, nil)
		_, err := c.Status(context.Background(), "gone")
		require.ErrorIs(t, err, ErrConnectorNotFound)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rebalance in progress", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL}, nil)
		_, err := c.Status(context.Background(), "pg-source")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	})
}

func TestDelete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/connectors/pg-source", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL}, nil)
		require.NoError(t, c.Delete(context.Background(), "pg-source"))
	})

	t.Run("already gone", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error_code":404,"message":"no such connector"}`, http.StatusNotFound)
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL}, nil)
		require.NoError(t, c.Delete(context.Background(), "pg-source"))
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rebalance in progress", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewClient(Config{URL: srv.URL}, nil)
		var apiErr *APIError
		require.ErrorAs(t, c.Delete(context.Background(), "pg-source"), &apiErr)
	})
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/connectors", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["pg-source","iceberg-sink","es-sink"]`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL}, nil)
	names, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pg-source", "iceberg-sink", "es-sink"}, names)
}
