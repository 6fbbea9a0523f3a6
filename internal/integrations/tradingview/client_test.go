package tradingview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:       server.URL,
		SessionID:     "sess",
		SessionIDSign: "sign",
	}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestVerifyConnection(t *testing.T) {
	t.Run("valid session", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("sessionid")
			require.NoError(t, err)
			assert.Equal(t, "sess", cookie.Value)
			w.WriteHeader(http.StatusOK)
		}))

		assert.NoError(t, client.VerifyConnection(context.Background()))
	})

	t.Run("dead session redirects to signin", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/accounts/signin/", http.StatusFound)
		}))

		err := client.VerifyConnection(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session rejected")
	})

	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))

		assert.Error(t, client.VerifyConnection(context.Background()))
	})
}

func TestListIndicatorsProbesInOrder(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/pine_facade/list/":
			w.WriteHeader(http.StatusNotFound)
		case "/u/scripts/":
			w.Write([]byte(`{"results":[]}`))
		case "/api/v1/user/scripts/":
			w.Write([]byte(`{"data":[{"script_id":"PUB;abc","script_name":"Trend Ribbon"}]}`))
		}
	}))

	indicators, probes := client.ListIndicators(context.Background())

	require.Len(t, indicators, 1)
	assert.Equal(t, "PUB;abc", indicators[0].ID)
	assert.Equal(t, "Trend Ribbon", indicators[0].Name)

	assert.Equal(t, []string{"/pine_facade/list/", "/u/scripts/", "/api/v1/user/scripts/"}, paths)
	require.Len(t, probes, 3)
	assert.Equal(t, "bad_status", probes[0].Outcome)
	assert.Equal(t, "empty", probes[1].Outcome)
	assert.Equal(t, "ok", probes[2].Outcome)
}

func TestListIndicatorsFirstHitWins(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[{"id":"PUB;first","name":"Scalper"}]`))
	}))

	indicators, probes := client.ListIndicators(context.Background())

	require.Len(t, indicators, 1)
	assert.Equal(t, 1, calls)
	assert.Len(t, probes, 1)
}

func TestListIndicatorsUnknownCatalog(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	indicators, probes := client.ListIndicators(context.Background())

	assert.Empty(t, indicators)
	assert.Len(t, probes, 3)
}

func TestNormalizeScripts(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Indicator
	}{
		{
			name: "bare array",
			body: `[{"id":"PUB;1","name":"One"}]`,
			want: []Indicator{{ID: "PUB;1", Name: "One"}},
		},
		{
			name: "results wrapper",
			body: `{"results":[{"pine_id":"PUB;2","title":"Two"}]}`,
			want: []Indicator{{ID: "PUB;2", Name: "Two"}},
		},
		{
			name: "scripts wrapper with script fields",
			body: `{"scripts":[{"script_id":"PUB;3","script_name":"Three"}]}`,
			want: []Indicator{{ID: "PUB;3", Name: "Three", ScriptID: "PUB;3"}},
		},
		{
			name: "numeric id",
			body: `[{"id":42,"name":"NumId"}]`,
			want: []Indicator{{ID: "42", Name: "NumId"}},
		},
		{
			name: "entries without id or name dropped",
			body: `[{"name":"no id"},{"id":"PUB;4"},{"id":"PUB;5","name":"Keep"}]`,
			want: []Indicator{{ID: "PUB;5", Name: "Keep"}},
		},
		{
			name: "not json",
			body: `<html>signin</html>`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeScripts([]byte(tt.body)))
		})
	}
}

func TestGrantAccess(t *testing.T) {
	t.Run("share succeeds", func(t *testing.T) {
		var paths []string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "PUB;x", r.PostFormValue("pine_id"))
			assert.Equal(t, "trader_joe", r.PostFormValue("username_recip"))
			w.WriteHeader(http.StatusOK)
		}))

		require.NoError(t, client.GrantAccess(context.Background(), "PUB;x", "trader_joe"))
		assert.Equal(t, []string{"/pine_perm/share/"}, paths)
	})

	t.Run("falls back to invite", func(t *testing.T) {
		var paths []string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
			if r.URL.Path == "/pine_perm/share/" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))

		require.NoError(t, client.GrantAccess(context.Background(), "PUB;x", "trader_joe"))
		assert.Equal(t, []string{"/pine_perm/share/", "/pine_perm/invite/"}, paths)
	})

	t.Run("both endpoints fail", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))

		assert.Error(t, client.GrantAccess(context.Background(), "PUB;x", "trader_joe"))
	})
}

func TestRevokeAccess(t *testing.T) {
	t.Run("delete succeeds", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "PUB;x", r.URL.Query().Get("pine_id"))
			assert.Equal(t, "trader_joe", r.URL.Query().Get("username_recip"))
			w.WriteHeader(http.StatusOK)
		}))

		require.NoError(t, client.RevokeAccess(context.Background(), "PUB;x", "trader_joe"))
	})

	t.Run("falls back to remove_access", func(t *testing.T) {
		var paths []string
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
			if r.Method == http.MethodDelete {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))

		require.NoError(t, client.RevokeAccess(context.Background(), "PUB;x", "trader_joe"))
		assert.Equal(t, []string{"/pine_perm/share/", "/pine_perm/remove_access/"}, paths)
	})
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{SessionID: "s"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{BaseURL: "http://example.com"}, zerolog.Nop())
	assert.Error(t, err)
}
