package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/product-api/internal/models"
	"github.com/dimitrije/product-api/internal/services"
	"github.com/google/uuid"
)

const testJWTSecret = "test-secret-key-for-testing-only"

// TestJWTService signs and validates tokens with the secret shared by every
// router built in tests.
func TestJWTService() *services.JWTService {
	return services.NewJWTService(testJWTSecret, 15*time.Minute)
}

// GenerateTestToken returns an access token for the given principal.
func GenerateTestToken(t *testing.T, userID uuid.UUID, username string) string {
	t.Helper()
	token, err := TestJWTService().GenerateAccessToken(models.Principal{ID: userID, Username: username})
	if err != nil {
		t.Fatalf("sign test token: %v", err)
	}
	return token
}

// AuthHeaders returns headers authenticating as userID. Callers may add to
// the returned map.
func AuthHeaders(t *testing.T, userID uuid.UUID) map[string]string {
	t.Helper()
	token := GenerateTestToken(t, userID, "user-"+userID.String()[:8])
	return map[string]string{"Authorization": "Bearer " + token}
}

// HTTPTestClient drives a handler in-process with JSON bodies.
type HTTPTestClient struct {
	t       *testing.T
	handler http.Handler
}

func NewHTTPTestClient(t *testing.T, handler http.Handler) *HTTPTestClient {
	return &HTTPTestClient{t: t, handler: handler}
}

// Request encodes body as JSON when it is non-nil and records the response.
func (c *HTTPTestClient) Request(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("encode %s %s body: %v", method, path, err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func (c *HTTPTestClient) GET(path string, headers map[string]string) *httptest.ResponseRecorder {
	return c.Request(http.MethodGet, path, nil, headers)
}

func (c *HTTPTestClient) POST(path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	return c.Request(http.MethodPost, path, body, headers)
}

func (c *HTTPTestClient) PUT(path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	return c.Request(http.MethodPut, path, body, headers)
}

func (c *HTTPTestClient) DELETE(path string, headers map[string]string) *httptest.ResponseRecorder {
	return c.Request(http.MethodDelete, path, nil, headers)
}

// ParseJSON decodes the recorded body into v.
func ParseJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

// AssertStatus reports the body along with an unexpected status.
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rec.Code != expected {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, expected, rec.Body.String())
	}
}

// AssertJSON checks that each key in expected is present in the JSON body
// with an equal decoded value. Numbers decode as float64.
func AssertJSON(t *testing.T, rec *httptest.ResponseRecorder, expected map[string]any) {
	t.Helper()
	var actual map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&actual); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	for key, want := range expected {
		got, ok := actual[key]
		switch {
		case !ok:
			t.Errorf("response has no %q field", key)
		case got != want:
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
}
