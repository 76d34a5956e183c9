package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/collabflow/collabflow/internal/config"
	"github.com/collabflow/collabflow/pkg/models"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct {
	payload []byte
}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

// MockTenantStore satisfies repository.TenantStore
type MockTenantStore struct {
	mock.Mock
}

func (m *MockTenantStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	args := m.Called(ctx, domain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantStore) EnsureUser(ctx context.Context, tenantID, email, name string) (*models.User, error) {
	args := m.Called(ctx, tenantID, email, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func fakeJWT(issuer, clientID, email string) (string, []byte) {
	claims := map[string]interface{}{
		"iss":   issuer,
		"aud":   clientID,
		"sub":   "test-user",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Add(-1 * time.Minute).Unix(),
		"email": email,
	}
	headerData := map[string]interface{}{
		"alg": "RS256",
		"typ": "JWT",
		"kid": "test-key",
	}
	headerBytes, _ := json.Marshal(headerData)
	encodedHeader := base64.RawURLEncoding.EncodeToString(headerBytes)
	payload, _ := json.Marshal(claims)
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	encodedSignature := base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))
	return encodedHeader + "." + encodedPayload + "." + encodedSignature, payload
}

func TestRequireAuth_BearerToken_ExtractsIdentity(t *testing.T) {
	// 1. Setup Mock Store
	mockStore := new(MockTenantStore)
	expectedTenant := &models.Tenant{
		ID:     "tenant-123",
		Name:   "acme.com",
		Domain: "acme.com",
	}
	mockStore.On("GetTenantByDomain", mock.Anything, "acme.com").Return(expectedTenant, nil)
	mockStore.On("EnsureUser", mock.Anything, "tenant-123", "user@acme.com", mock.Anything).
		Return(&models.User{ID: "user-456", TenantID: "tenant-123", Email: "user@acme.com"}, nil)

	// 2. Setup Mock OIDC Verifier
	issuer := "https://test-issuer.com"
	clientID := "test-client"
	fakeToken, payload := fakeJWT(issuer, clientID, "user@acme.com")

	keySet := &MockKeySet{payload: payload}
	verifier := oidc.NewVerifier(issuer, keySet, &oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: true, // Matches logic in auth.go for apiVerifier
	})

	// 3. Create Auth instance
	a := &Auth{
		apiVerifier: verifier, // We are testing Bearer token flow
		store:       mockStore,
	}

	// 4. Create Request
	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken)
	rec := httptest.NewRecorder()

	// 5. Define Next Handler to verify context
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tenant-123", TenantID(r.Context()))
		assert.Equal(t, "user-456", UserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	// 6. Run Middleware
	a.RequireAuth(nextHandler).ServeHTTP(rec, req)

	// 7. Assertions
	if rec.Code != http.StatusOK {
		t.Logf("Response Body: %s", rec.Body.String())
	}
	assert.Equal(t, http.StatusOK, rec.Code)
	mockStore.AssertExpectations(t)
}

func TestLoginHandler_RequestsAllScopes(t *testing.T) {
	// Mirror the oauth2.Config built by New; LoginHandler must forward the
	// workflow API scopes to the authorization endpoint.
	a := &Auth{
		oauth2Config: &oauth2.Config{
			ClientID:    "test-client",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://test-issuer.com/authorize"},
			RedirectURL: "https://app.example.com/auth/callback",
			Scopes:      AllScopes,
		},
	}

	req := httptest.NewRequest("GET", "/login", nil)
	rec := httptest.NewRecorder()
	a.LoginHandler(rec, req)

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, strings.Join(AllScopes, " "), location.Query().Get("scope"))
	for _, scope := range []string{ScopeWorkflowsRead, ScopeWorkflowsWrite} {
		assert.Contains(t, location.Query().Get("scope"), scope)
	}
}

func TestRequireAuth_BypassMode(t *testing.T) {
	// 1. Setup Mock Store
	mockStore := new(MockTenantStore)
	// Expect tenant lookup for "localhost" (from dev@localhost)
	mockStore.On("GetTenantByDomain", mock.Anything, "localhost").Return(nil, fmt.Errorf("not found"))
	mockStore.On("CreateTenant", mock.Anything, mock.MatchedBy(func(tenant *models.Tenant) bool {
		return tenant.Domain == "localhost"
	})).Run(func(args mock.Arguments) {
		argTenant := args.Get(1).(*models.Tenant)
		argTenant.ID = "dev-tenant-id"
	}).Return(nil)
	mockStore.On("EnsureUser", mock.Anything, "dev-tenant-id", "dev@localhost", "Dev User").
		Return(&models.User{ID: "dev-user-id", TenantID: "dev-tenant-id", Email: "dev@localhost"}, nil)

	// 2. Create Auth via New to verify config logic
	cfg := &config.Config{
		Environment:   "DEV",
		DevModeBypass: true,
	}
	a, err := New(context.Background(), cfg, mockStore, &NoOpLogger{})
	assert.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	rec := httptest.NewRecorder()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dev-tenant-id", TenantID(r.Context()))
		assert.Equal(t, "dev-user-id", UserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(nextHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockStore.AssertExpectations(t)
}

func TestRequireAuth_AutoProvisionTenant(t *testing.T) {
	// 1. Setup Mock Store
	mockStore := new(MockTenantStore)
	// GetTenantByDomain returns error (not found)
	mockStore.On("GetTenantByDomain", mock.Anything, "startup.io").Return(nil, fmt.Errorf("not found"))
	// CreateTenant should be called
	mockStore.On("CreateTenant", mock.Anything, mock.MatchedBy(func(tenant *models.Tenant) bool {
		return tenant.Domain == "startup.io" && tenant.Name == "startup.io"
	})).Run(func(args mock.Arguments) {
		argTenant := args.Get(1).(*models.Tenant)
		argTenant.ID = "new-tenant-id"
	}).Return(nil)
	mockStore.On("EnsureUser", mock.Anything, "new-tenant-id", "founder@startup.io", mock.Anything).
		Return(&models.User{ID: "founder-id", TenantID: "new-tenant-id", Email: "founder@startup.io"}, nil)

	// 2. Setup Mock OIDC Verifier
	issuer := "https://test-issuer.com"
	clientID := "test-client"
	fakeToken, payload := fakeJWT(issuer, clientID, "founder@startup.io")

	keySet := &MockKeySet{payload: payload}
	verifier := oidc.NewVerifier(issuer, keySet, &oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: true,
	})

	a := &Auth{apiVerifier: verifier, store: mockStore}
	req := httptest.NewRequest("GET", "/api/v1/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken)
	rec := httptest.NewRecorder()

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "new-tenant-id", TenantID(r.Context())) // Mock CreateTenant sets this
		w.WriteHeader(http.StatusOK)
	})

	a.RequireAuth(nextHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Logf("Response Body: %s", rec.Body.String())
	}
	assert.Equal(t, http.StatusOK, rec.Code)
	mockStore.AssertExpectations(t)
}
