package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("alice@example.com"))
	assert.True(t, IsValidEmail("Alice.Smith+tag@Mail.Example.org"))
	assert.False(t, IsValidEmail("alice"))
	assert.False(t, IsValidEmail("alice@"))
	assert.False(t, IsValidEmail("alice@example"))
	assert.False(t, IsValidEmail(""))
}

func TestIsValidUsername(t *testing.T) {
	for _, ok := range []string{"alice", "a.b", "a@b", "a+b", "a-b", "a_b", "zoë", "user42"} {
		assert.True(t, IsValidUsername(ok), ok)
	}
	for _, bad := range []string{"", "a b", "a/b", "a#b", "a!"} {
		assert.False(t, IsValidUsername(bad), bad)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Empty(t, ValidatePassword("correct-horse-battery", "alice"))

	assert.Contains(t, ValidatePassword("Ab1!", "alice"),
		"This password is too short. It must contain at least 8 characters.")
	assert.Contains(t, ValidatePassword("38294715", "alice"), "This password is entirely numeric.")
	assert.Contains(t, ValidatePassword("xxALICExx99", "alice"), "The password is too similar to the username.")
	assert.Contains(t, ValidatePassword("Password1", "bob"), "This password is too common.")

	problems := ValidatePassword("1234567", "bob")
	assert.Len(t, problems, 2)
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.True(t, CheckPasswordHash("s3cret-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("s3cret-pass", "not-a-hash"))
}

type sampleRequest struct {
	Username *string `json:"username" binding:"omitnil,min=1,max=5,username"`
	Email    string  `json:"email" binding:"max=254,email_or_blank"`
	Name     string  `json:"name" binding:"required"`
}

func strPtr(s string) *string { return &s }

func TestValidateStructMessages(t *testing.T) {
	err := ValidateStruct(&sampleRequest{Username: strPtr(""), Email: "nope"})
	require.Error(t, err)

	fields := ValidationMessages(err)
	assert.Equal(t, []string{"This field may not be blank."}, fields["username"])
	assert.Equal(t, []string{"Enter a valid email address."}, fields["email"])
	assert.Equal(t, []string{"This field is required."}, fields["name"])

	err = ValidateStruct(&sampleRequest{Username: strPtr("toolong"), Name: "x"})
	assert.Equal(t, []string{"Ensure this field has no more than 5 characters."}, ValidationMessages(err)["username"])

	err = ValidateStruct(&sampleRequest{Username: strPtr("a b"), Name: "x"})
	assert.Contains(t, ValidationMessages(err)["username"][0], "Enter a valid username.")

	assert.NoError(t, ValidateStruct(&sampleRequest{Name: "x"}), "nil pointer and blank email are fine")
	assert.Nil(t, ValidationMessages(errors.New("other")))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var body JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSendAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       string
		authHeader bool
	}{
		{"authentication", apierror.NotAuthenticated(), http.StatusUnauthorized, apierror.CodeNotAuthenticated, true},
		{"forbidden", apierror.Forbidden(), http.StatusForbidden, apierror.CodePermissionDenied, false},
		{"validation", apierror.FieldError("username", "taken"), http.StatusBadRequest, apierror.CodeInvalid, false},
		{"plain error", errors.New("db down"), http.StatusInternalServerError, apierror.CodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/api/users/", nil)

			SendAPIError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, "error", body.Status)
			assert.Equal(t, tt.code, body.Code)
			assert.NotContains(t, body.Message, "db down")
			if tt.authHeader {
				assert.Equal(t, AuthenticateHeader, w.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestSendAPIError_Fields(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPatch, "/api/users/me/", nil)

	SendAPIError(c, apierror.FieldError("is_staff", "This field is read-only."))

	body := decodeBody(t, w)
	assert.Equal(t, map[string][]string{"is_staff": {"This field is read-only."}}, body.Fields)
}

func TestRateLimiter_Windows(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("2.2.2.2"), "limits are per client")

	now = now.Add(time.Minute)
	assert.True(t, l.Allow("1.1.1.1"), "new window")
}

func TestRateLimiter_SweepsOncePerInterval(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	l := NewRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	at := func(d time.Duration, key string) {
		now = start.Add(d)
		l.Allow(key)
	}

	at(0, "a")
	at(30*time.Second, "b")
	at(61*time.Second, "c")
	assert.NotContains(t, l.clients, "a", "ended window is swept")
	assert.Len(t, l.clients, 2)

	// b has ended, but the last sweep was under an interval ago.
	at(95*time.Second, "d")
	assert.Contains(t, l.clients, "b")
	assert.Len(t, l.clients, 3)

	at(121*time.Second, "e")
	assert.Len(t, l.clients, 2)
	assert.Contains(t, l.clients, "d")
	assert.Contains(t, l.clients, "e")
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("1.1.1.1"))
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	l := NewRateLimiter(50, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("1.1.1.1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRateLimiter_Middleware(t *testing.T) {
	r := gin.New()
	r.POST("/auth/token/", NewRateLimiter(1, time.Minute).Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/auth/token/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)
	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "throttled", body.Code)
}
