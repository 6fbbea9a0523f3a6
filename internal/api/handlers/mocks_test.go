package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nicholaswood-whop/trading-view-whop/internal/api/middleware"
	"github.com/nicholaswood-whop/trading-view-whop/internal/db"
	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/tradingview"
	"github.com/nicholaswood-whop/trading-view-whop/internal/integrations/whop"
	"github.com/nicholaswood-whop/trading-view-whop/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// authedRouter builds a router with the identity middleware applied, the way
// the real route table mounts these handlers.
func authedRouter(register func(rg *gin.RouterGroup)) *gin.Engine {
	router := gin.New()
	api := router.Group("/api", middleware.RequireIdentity())
	register(api)
	return router
}

func userToken(t *testing.T, userID, companyID string) string {
	t.Helper()
	claims := map[string]any{}
	if userID != "" {
		claims["userId"] = userID
	}
	if companyID != "" {
		claims["companyId"] = companyID
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return "header." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Whop-User-Token", token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

// fakeStore implements the handler store interfaces in memory.
type fakeStore struct {
	connections map[string]*models.Connection
	indicators  map[uuid.UUID]*models.Indicator
	grants      map[string]*models.AccessGrant

	upsertIndicatorErr error
	upsertGrantErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		connections: make(map[string]*models.Connection),
		indicators:  make(map[uuid.UUID]*models.Indicator),
		grants:      make(map[string]*models.AccessGrant),
	}
}

func grantKey(userID string, indicatorID uuid.UUID) string {
	return userID + "/" + indicatorID.String()
}

func (f *fakeStore) UpsertConnection(_ context.Context, conn *models.Connection) (*models.Connection, error) {
	if existing, ok := f.connections[conn.CompanyID]; ok {
		existing.SessionID = conn.SessionID
		existing.SessionIDSign = conn.SessionIDSign
		return existing, nil
	}
	f.connections[conn.CompanyID] = conn
	return conn, nil
}

func (f *fakeStore) DeleteConnectionByCompanyID(_ context.Context, companyID string) error {
	if _, ok := f.connections[companyID]; !ok {
		return db.ErrNotFound
	}
	delete(f.connections, companyID)
	return nil
}

func (f *fakeStore) GetConnectionByCompanyID(_ context.Context, companyID string) (*models.Connection, error) {
	conn, ok := f.connections[companyID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return conn, nil
}

func (f *fakeStore) GetIndicatorsByCompanyID(_ context.Context, companyID string) ([]*models.Indicator, error) {
	var out []*models.Indicator
	for _, ind := range f.indicators {
		if ind.CompanyID == companyID {
			out = append(out, ind)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUnattachedIndicators(_ context.Context, connectionID uuid.UUID) ([]*models.Indicator, error) {
	var out []*models.Indicator
	for _, ind := range f.indicators {
		if ind.ConnectionID == connectionID && ind.ExperienceID == nil {
			out = append(out, ind)
		}
	}
	return out, nil
}

func (f *fakeStore) GetIndicatorByID(_ context.Context, id uuid.UUID) (*models.Indicator, error) {
	ind, ok := f.indicators[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return ind, nil
}

func (f *fakeStore) GetIndicatorByExperience(_ context.Context, experienceID, companyID string) (*models.Indicator, error) {
	for _, ind := range f.indicators {
		if ind.CompanyID == companyID && ind.ExperienceID != nil && *ind.ExperienceID == experienceID {
			return ind, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) UpsertIndicator(_ context.Context, indicator *models.Indicator) (*models.Indicator, error) {
	if f.upsertIndicatorErr != nil {
		return nil, f.upsertIndicatorErr
	}
	for _, existing := range f.indicators {
		if existing.ConnectionID == indicator.ConnectionID && existing.TradingViewID == indicator.TradingViewID {
			existing.Name = indicator.Name
			existing.ScriptID = indicator.ScriptID
			return existing, nil
		}
	}
	f.indicators[indicator.ID] = indicator
	return indicator, nil
}

func (f *fakeStore) AttachIndicatorToExperience(_ context.Context, id uuid.UUID, experienceID string) (*models.Indicator, error) {
	ind, ok := f.indicators[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	ind.ExperienceID = &experienceID
	return ind, nil
}

func (f *fakeStore) GetAccessGrant(_ context.Context, userID string, indicatorID uuid.UUID) (*models.AccessGrant, error) {
	grant, ok := f.grants[grantKey(userID, indicatorID)]
	if !ok {
		return nil, db.ErrNotFound
	}
	return grant, nil
}

func (f *fakeStore) UpsertAccessGrant(_ context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	if f.upsertGrantErr != nil {
		return nil, f.upsertGrantErr
	}
	f.grants[grantKey(grant.UserID, grant.IndicatorID)] = grant
	return grant, nil
}

// fakeTVClient implements TradingViewClient.
type fakeTVClient struct {
	verifyErr  error
	grantErr   error
	revokeErr  error
	indicators []tradingview.Indicator

	grantCalls  []string
	revokeCalls []string
}

func (f *fakeTVClient) VerifyConnection(_ context.Context) error {
	return f.verifyErr
}

func (f *fakeTVClient) ListIndicators(_ context.Context) ([]tradingview.Indicator, []tradingview.ProbeResult) {
	probes := []tradingview.ProbeResult{{Endpoint: "/pine_facade/list/", Status: 200, Outcome: "ok", Count: len(f.indicators)}}
	return f.indicators, probes
}

func (f *fakeTVClient) GrantAccess(_ context.Context, pineID, username string) error {
	f.grantCalls = append(f.grantCalls, pineID+":"+username)
	return f.grantErr
}

func (f *fakeTVClient) RevokeAccess(_ context.Context, pineID, username string) error {
	f.revokeCalls = append(f.revokeCalls, pineID+":"+username)
	return f.revokeErr
}

func fixedFactory(client *fakeTVClient) TradingViewFactory {
	return func(sessionID, sessionIDSign string) (TradingViewClient, error) {
		return client, nil
	}
}

// fakeWhopClient implements WhopClient.
type fakeWhopClient struct {
	membership    *whop.Membership
	membershipErr error
	experience    *whop.Experience
	experienceErr error
	admins        map[string]bool
}

func (f *fakeWhopClient) GetMembership(_ context.Context, membershipID string) (*whop.Membership, error) {
	if f.membershipErr != nil {
		return nil, f.membershipErr
	}
	if f.membership == nil {
		return nil, fmt.Errorf("membership %s not found", membershipID)
	}
	return f.membership, nil
}

func (f *fakeWhopClient) GetExperience(_ context.Context, experienceID string) (*whop.Experience, error) {
	if f.experienceErr != nil {
		return nil, f.experienceErr
	}
	if f.experience == nil {
		return nil, fmt.Errorf("experience %s not found", experienceID)
	}
	return f.experience, nil
}

func (f *fakeWhopClient) IsUserOwnerOrAdmin(_ context.Context, userID, companyID string) bool {
	return f.admins[userID+"/"+companyID]
}
