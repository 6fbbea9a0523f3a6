package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/tradingview"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
	"github.com/rs/zerolog"
)

func newIndicatorsFixture(tv *fakeTVClient) (*fakeStore, *gin.Engine) {
	store := newFakeStore()
	handler := NewIndicatorsHandler(store, fixedFactory(tv), zerolog.Nop())
	return store, authedRouter(handler.RegisterRoutes)
}

func seedConnection(store *fakeStore, companyID string) *models.Connection {
	conn := models.NewConnection(companyID, "sess", "sign")
	store.connections[companyID] = conn
	return conn
}

func TestListIndicators(t *testing.T) {
	store, router := newIndicatorsFixture(&fakeTVClient{})
	conn := seedConnection(store, "biz_1")
	ind := models.NewIndicator(conn.ID, "biz_1", "PUB;a", "Alpha")
	store.indicators[ind.ID] = ind

	w := doJSON(t, router, http.MethodGet, "/api/seller/indicators", userToken(t, "user_1", "biz_1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	indicators, ok := body["indicators"].([]any)
	if !ok || len(indicators) != 1 {
		t.Errorf("expected one indicator, got %v", body)
	}
}

func TestListIndicatorsNotConnected(t *testing.T) {
	_, router := newIndicatorsFixture(&fakeTVClient{})

	w := doJSON(t, router, http.MethodGet, "/api/seller/indicators", userToken(t, "user_1", "biz_1"), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestImportUpsertsByNaturalKey(t *testing.T) {
	tv := &fakeTVClient{indicators: []tradingview.Indicator{{ID: "PUB;a", Name: "Alpha v2"}}}
	store, router := newIndicatorsFixture(tv)
	conn := seedConnection(store, "biz_1")

	existing := models.NewIndicator(conn.ID, "biz_1", "PUB;a", "Alpha")
	exp := "exp_1"
	existing.ExperienceID = &exp
	store.indicators[existing.ID] = existing

	w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/import", userToken(t, "user_1", "biz_1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["imported"] != float64(1) {
		t.Errorf("expected 1 imported, got %v", body)
	}
	if body["probes"] == nil {
		t.Errorf("expected probe trail in response, got %v", body)
	}

	if len(store.indicators) != 1 {
		t.Fatalf("expected no duplicate row, got %d", len(store.indicators))
	}
	// Reimport refreshed the name but kept the attachment.
	if existing.Name != "Alpha v2" {
		t.Errorf("expected name refreshed, got %q", existing.Name)
	}
	if existing.ExperienceID == nil || *existing.ExperienceID != "exp_1" {
		t.Errorf("expected attachment preserved, got %v", existing.ExperienceID)
	}
}

func TestImportEmptyCatalogWarns(t *testing.T) {
	store, router := newIndicatorsFixture(&fakeTVClient{})
	seedConnection(store, "biz_1")

	w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/import", userToken(t, "user_1", "biz_1"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["warning"] == nil {
		t.Errorf("expected warning, got %v", body)
	}
}

func TestAddManualIndicator(t *testing.T) {
	store, router := newIndicatorsFixture(&fakeTVClient{})
	seedConnection(store, "biz_1")

	w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/manual", userToken(t, "user_1", "biz_1"), map[string]any{
		"tradingViewId": "PUB;manual",
		"name":          "Hand Entered",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(store.indicators) != 1 {
		t.Fatalf("expected indicator stored, got %d", len(store.indicators))
	}

	t.Run("requires fields", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/manual", userToken(t, "user_1", "biz_1"), map[string]any{
			"name": "missing id",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("requires connection", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/manual", userToken(t, "user_1", "biz_other"), map[string]any{
			"tradingViewId": "PUB;x",
			"name":          "X",
		})
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestAttachIndicator(t *testing.T) {
	store, router := newIndicatorsFixture(&fakeTVClient{})
	conn := seedConnection(store, "biz_1")
	ind := models.NewIndicator(conn.ID, "biz_1", "PUB;a", "Alpha")
	store.indicators[ind.ID] = ind

	w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/"+ind.ID.String()+"/attach", userToken(t, "user_1", "biz_1"), map[string]any{
		"experienceId": "exp_9",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ind.ExperienceID == nil || *ind.ExperienceID != "exp_9" {
		t.Errorf("expected attachment, got %v", ind.ExperienceID)
	}
}

func TestAttachIndicatorErrors(t *testing.T) {
	store, router := newIndicatorsFixture(&fakeTVClient{})
	conn := seedConnection(store, "biz_1")
	ind := models.NewIndicator(conn.ID, "biz_1", "PUB;a", "Alpha")
	store.indicators[ind.ID] = ind

	t.Run("invalid id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/not-a-uuid/attach", userToken(t, "user_1", "biz_1"), map[string]any{
			"experienceId": "exp_9",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("other company's indicator hidden", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/"+ind.ID.String()+"/attach", userToken(t, "user_1", "biz_other"), map[string]any{
			"experienceId": "exp_9",
		})
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("missing experienceId", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/seller/indicators/"+ind.ID.String()+"/attach", userToken(t, "user_1", "biz_1"), map[string]any{})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}
