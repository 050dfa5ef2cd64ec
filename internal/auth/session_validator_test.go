package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "app_session"
	testSessionUserID        = "user-123"
	testSessionUserEmail     = "user@example.com"
)

func newTestValidator(t *testing.T, clockNow time.Time) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return clockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func signClaims(t *testing.T, method jwt.SigningMethod, secret any, claims SessionClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestSessionValidatorValidateToken(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)

	signed := signClaims(t, jwt.SigningMethodHS256, []byte(testSessionSigningSecret), SessionClaims{
		UserID:    testSessionUserID,
		UserEmail: testSessionUserEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultSessionIssuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
		},
	})

	claims, err := validator.ValidateToken(signed)
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
	if claims.UserEmail != testSessionUserEmail {
		t.Fatalf("unexpected email: %s", claims.UserEmail)
	}
}

func TestSessionValidatorRejectsBadTokens(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	validator := newTestValidator(t, clockNow)
	valid := jwt.RegisteredClaims{
		Issuer:    DefaultSessionIssuer,
		Subject:   testSessionUserID,
		IssuedAt:  jwt.NewNumericDate(clockNow.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(clockNow.Add(-time.Hour))
	foreign := valid
	foreign.Issuer = "someone-else"
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	testCases := []struct {
		name     string
		token    string
		expected error
	}{
		{name: "empty", token: " ", expected: ErrMissingSessionToken},
		{
			name:     "expired",
			token:    signClaims(t, jwt.SigningMethodHS256, []byte(testSessionSigningSecret), SessionClaims{UserID: testSessionUserID, RegisteredClaims: expired}),
			expected: ErrExpiredSessionToken,
		},
		{
			name:     "wrong issuer",
			token:    signClaims(t, jwt.SigningMethodHS256, []byte(testSessionSigningSecret), SessionClaims{UserID: testSessionUserID, RegisteredClaims: foreign}),
			expected: ErrInvalidSessionToken,
		},
		{
			name:     "wrong secret",
			token:    signClaims(t, jwt.SigningMethodHS256, []byte("other"), SessionClaims{UserID: testSessionUserID, RegisteredClaims: valid}),
			expected: ErrInvalidSessionToken,
		},
		{
			name:     "wrong algorithm",
			token:    signClaims(t, jwt.SigningMethodHS512, []byte(testSessionSigningSecret), SessionClaims{UserID: testSessionUserID, RegisteredClaims: valid}),
			expected: ErrInvalidSessionToken,
		},
		{
			name:     "missing expiry",
			token:    signClaims(t, jwt.SigningMethodHS256, []byte(testSessionSigningSecret), SessionClaims{UserID: testSessionUserID, RegisteredClaims: noExpiry}),
			expected: ErrInvalidSessionToken,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := validator.ValidateToken(testCase.token)
			if !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestSessionValidatorValidateRequestSources(t *testing.T) {
	issuer, err := NewSessionIssuer(SessionIssuerConfig{SigningSecret: []byte(testSessionSigningSecret)})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}
	signed, _, err := issuer.IssueSessionToken(SessionIdentity{UserID: testSessionUserID})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}

	cookieRequest := httptest.NewRequest(http.MethodGet, "/documents", http.NoBody)
	cookieRequest.AddCookie(&http.Cookie{Name: testSessionCookieName, Value: signed})

	bearerRequest := httptest.NewRequest(http.MethodGet, "/documents", http.NoBody)
	bearerRequest.Header.Set("Authorization", "Bearer "+signed)

	for name, request := range map[string]*http.Request{"cookie": cookieRequest, "bearer": bearerRequest} {
		claims, err := validator.ValidateRequest(request)
		if err != nil {
			t.Fatalf("%s validation failed: %v", name, err)
		}
		if claims.UserID != testSessionUserID {
			t.Fatalf("%s: unexpected user id: %s", name, claims.UserID)
		}
	}

	anonymous := httptest.NewRequest(http.MethodGet, "/documents", http.NoBody)
	anonymous.Header.Set("Authorization", "Basic abc")
	if _, err := validator.ValidateRequest(anonymous); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
}

func TestNewSessionValidatorRequiresSecretAndCookie(t *testing.T) {
	if _, err := NewSessionValidator(SessionValidatorConfig{CookieName: testSessionCookieName}); !errors.Is(err, ErrMissingSessionSigningKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
	if _, err := NewSessionValidator(SessionValidatorConfig{SigningSecret: []byte("s")}); !errors.Is(err, ErrMissingSessionCookieName) {
		t.Fatalf("expected missing cookie error, got %v", err)
	}
}
