package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/auth"
	"github.com/MarcoPoloResearchLab/docrev/internal/database"
	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"github.com/MarcoPoloResearchLab/docrev/internal/metrics"
	"github.com/MarcoPoloResearchLab/docrev/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSigningSecret = "server-test-secret"
	testCookieName    = "app_session"
)

type testServer struct {
	server     *httptest.Server
	issuer     *auth.SessionIssuer
	dispatcher *RealtimeDispatcher
	metrics    *metrics.Metrics
}

type testServerOption func(*Dependencies)

func newTestServer(t *testing.T, options ...testServerOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "server.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	registry, err := metrics.NewMetrics()
	require.NoError(t, err)
	dispatcher := NewRealtimeDispatcher(registry)

	docsService, err := docs.NewService(docs.ServiceConfig{
		Database:   db,
		IDProvider: docs.NewUUIDProvider(),
		Events:     dispatcher,
		Metrics:    registry,
	})
	require.NoError(t, err)

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	require.NoError(t, err)
	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		TokenTTL:      time.Hour,
	})
	require.NoError(t, err)
	identities, err := users.NewService(users.ServiceConfig{Database: db})
	require.NoError(t, err)

	deps := Dependencies{
		DocsService:      docsService,
		SessionValidator: validator,
		Identities:       identities,
		Realtime:         dispatcher,
		Metrics:          registry,
		AllowedOrigins:   []string{"*"},
		Logger:           zap.NewNop(),
	}
	for _, option := range options {
		option(&deps)
	}

	handler, err := NewHTTPHandler(deps)
	require.NoError(t, err)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testServer{server: server, issuer: issuer, dispatcher: dispatcher, metrics: registry}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.issuer.IssueSessionToken(auth.SessionIdentity{UserID: userID})
	require.NoError(t, err)
	return token
}

// do sends a JSON request as userID; an empty userID sends no credentials.
func (s *testServer) do(t *testing.T, method, path, userID string, body any) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		request.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func decodeBody(t *testing.T, response *http.Response, target any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(response.Body).Decode(target))
}

func (s *testServer) createDocument(t *testing.T, owner, content string) documentPayload {
	t.Helper()
	response := s.do(t, http.MethodPost, "/documents", owner, createDocumentRequestPayload{Title: "Guide", Content: content})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var document documentPayload
	decodeBody(t, response, &document)
	return document
}

func (s *testServer) submitSuggestion(t *testing.T, documentID, author, content string) suggestionPayload {
	t.Helper()
	response := s.do(t, http.MethodPost, "/documents/"+documentID+"/suggestions", author,
		submitSuggestionRequestPayload{Title: "Edit", Content: content})
	require.Equal(t, http.StatusCreated, response.StatusCode)
	var suggestion suggestionPayload
	decodeBody(t, response, &suggestion)
	return suggestion
}
