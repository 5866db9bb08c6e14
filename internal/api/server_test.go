package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplan/storyplan/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := testutil.NewTestConfig(t)
	store := testutil.NewTestStorage(t)
	return NewServer(cfg, store)
}

func seedSnapshot(t *testing.T, s *Server) {
	t.Helper()

	require.NoError(t, os.WriteFile(s.config.StoriesPath, []byte(testutil.ValidStoriesYAML()), 0644))
	require.NoError(t, s.RefreshFromFile(context.Background()))
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestRefreshAndListDocuments(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(s.config.StoriesPath, []byte(testutil.ValidStoriesYAML()), 0644))

	rec := doRequest(t, s, http.MethodPost, "/api/documents/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestRefresh_MissingFile(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/documents/refresh", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetStoriesHandler(t *testing.T) {
	s := newTestServer(t)
	seedSnapshot(t, s)

	rec := doRequest(t, s, http.MethodGet, "/api/documents/prd-auth/stories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(4), body["count"])

	rec = doRequest(t, s, http.MethodGet, "/api/documents/unknown/stories", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetGraphHandler(t *testing.T) {
	s := newTestServer(t)
	seedSnapshot(t, s)

	rec := doRequest(t, s, http.MethodGet, "/api/documents/prd-auth/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "prd-auth", body["documentId"])
	nodes := body["nodes"].([]interface{})
	assert.Len(t, nodes, 4)
	edges := body["edges"].([]interface{})
	assert.Len(t, edges, 2)
}

func TestGetValidationHandler(t *testing.T) {
	s := newTestServer(t)
	seedSnapshot(t, s)

	rec := doRequest(t, s, http.MethodGet, "/api/documents/prd-auth/validation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	// auth-3 depends on pending auth-2, so the plan is not clean.
	assert.Equal(t, false, body["valid"])
}

func TestScheduleHandler(t *testing.T) {
	s := newTestServer(t)
	seedSnapshot(t, s)

	payload := []byte(`{"capacity": 5, "capacityMode": "points"}`)
	rec := doRequest(t, s, http.MethodPost, "/api/documents/prd-auth/schedule", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["planId"], "plan is persisted by default")
	plan := body["plan"].(map[string]interface{})
	assert.NotEmpty(t, plan["sprints"])

	// The saved plan can be fetched back.
	rec = doRequest(t, s, http.MethodGet, "/api/plans/"+body["planId"].(string), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScheduleHandler_NoSave(t *testing.T) {
	s := newTestServer(t)
	seedSnapshot(t, s)

	payload := []byte(`{"capacity": 5, "capacityMode": "points", "save": false}`)
	rec := doRequest(t, s, http.MethodPost, "/api/documents/prd-auth/schedule", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Nil(t, body["planId"])

	rec = doRequest(t, s, http.MethodGet, "/api/plans", nil)
	assert.Equal(t, float64(0), decodeBody(t, rec)["count"])
}

func TestScheduleHandler_InputErrors(t *testing.T) {
	s := newTestServer(t)
	seedSnapshot(t, s)

	tests := []struct {
		name    string
		payload string
	}{
		{name: "zero capacity", payload: `{"capacity": 0, "capacityMode": "points"}`},
		{name: "negative capacity", payload: `{"capacity": -1, "capacityMode": "points"}`},
		{name: "unknown mode", payload: `{"capacity": 5, "capacityMode": "hours"}`},
		{name: "malformed body", payload: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/documents/prd-auth/schedule", []byte(tt.payload))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListAndDeletePlans(t *testing.T) {
	s := newTestServer(t)
	seedSnapshot(t, s)

	payload := []byte(`{"capacity": 5, "capacityMode": "points"}`)
	rec := doRequest(t, s, http.MethodPost, "/api/documents/prd-auth/schedule", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	planID := decodeBody(t, rec)["planId"].(string)

	rec = doRequest(t, s, http.MethodGet, "/api/plans?document=prd-auth", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"])

	rec = doRequest(t, s, http.MethodDelete, "/api/plans/"+planID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/api/plans/"+planID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	s := newTestServer(t)
	s.config.APIKey = "secret"
	seedSnapshot(t, s)

	// No key.
	rec := doRequest(t, s, http.MethodGet, "/api/documents", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key.
	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Header key.
	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Bearer token.
	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public.
	rec = doRequest(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMatchOriginPattern(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		pattern string
		want    bool
	}{
		{name: "port wildcard matches", origin: "http://localhost:3000", pattern: "http://localhost:*", want: true},
		{name: "port wildcard rejects other host", origin: "http://example.com", pattern: "http://localhost:*", want: false},
		{name: "subdomain wildcard matches", origin: "https://app.example.com", pattern: "*.example.com", want: true},
		{name: "subdomain wildcard matches apex", origin: "https://example.com", pattern: "*.example.com", want: true},
		{name: "no wildcard never matches", origin: "http://a", pattern: "http://a", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchOriginPattern(tt.origin, tt.pattern))
		})
	}
}
