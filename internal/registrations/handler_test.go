package registrations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiezrad/backend/config"
	"github.com/kiezrad/backend/internal/auth"
	"github.com/kiezrad/backend/internal/models"
	"github.com/kiezrad/backend/internal/ratelimit"
)

func newTestRouter(e *env, limits config.RateLimitConfig) (*gin.Engine, *auth.JWTService) {
	gin.SetMode(gin.TestMode)

	jwtSvc := auth.NewJWTService("test-secret", 1)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), zap.NewNop())
	h := NewHandler(e.svc, jwtSvc, limiter, limits, zap.NewNop())

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "error": "method not allowed"})
	})
	r.GET("/event", h.GetCapacity)
	r.POST("/event", h.PostEvent)
	return r, jwtSvc
}

func defaultLimits() config.RateLimitConfig {
	return config.RateLimitConfig{
		SignupMax: 100, SignupWindowSec: 60,
		CancelMax: 100, CancelWindowSec: 60,
		CapacityMax: 100, CapacityWindowSec: 60,
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:51234"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetCapacity(t *testing.T) {
	e := newEnv()
	_, err := e.svc.Signup(context.Background(), guestParams("alex@example.com"))
	require.NoError(t, err)

	r, _ := newTestRouter(e, defaultLimits())
	w := doJSON(t, r, http.MethodGet, "/event?eventId=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	var data struct {
		EventID int64          `json:"eventId"`
		Total   int            `json:"total"`
		Counts  map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, int64(1), data.EventID)
	assert.Equal(t, 1, data.Total)
	assert.Equal(t, 1, data.Counts["mellow"])
}

func TestGetCapacityInvalidEventID(t *testing.T) {
	e := newEnv()
	r, _ := newTestRouter(e, defaultLimits())

	for _, q := range []string{"/event", "/event?eventId=abc", "/event?eventId=0"} {
		w := doJSON(t, r, http.MethodGet, q, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestPostEventUnknownAction(t *testing.T) {
	e := newEnv()
	r, _ := newTestRouter(e, defaultLimits())

	w := doJSON(t, r, http.MethodPost, "/event", `{"action":"subscribe"}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeEnvelope(t, w).Error, "unknown action")
}

func TestPostEventGuestSignup(t *testing.T) {
	e := newEnv()
	r, _ := newTestRouter(e, defaultLimits())

	body := `{"action":"signup","eventId":1,"rideLevel":"mellow","firstName":"Alex","lastName":"Doe","email":"alex@example.com"}`
	w := doJSON(t, r, http.MethodPost, "/event", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeEnvelope(t, w)
	var data struct {
		Waitlisted bool `json:"waitlisted"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.False(t, data.Waitlisted)
}

func TestPostEventAuthenticatedSignup(t *testing.T) {
	e := newEnv()
	userID := uuid.New()
	e.profiles.u = &models.User{ID: userID, Email: "member@example.com", IsMember: true}
	r, jwtSvc := newTestRouter(e, defaultLimits())

	token, err := jwtSvc.Generate(userID, "member@example.com")
	require.NoError(t, err)

	body := `{"action":"signup","eventId":1,"rideLevel":"mellow","firstName":"Alex","lastName":"Doe"}`
	w := doJSON(t, r, http.MethodPost, "/event", body, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "member@example.com", e.notes.last(t).RecipientEmail)
}

func TestPostEventInvalidBearerToken(t *testing.T) {
	e := newEnv()
	r, _ := newTestRouter(e, defaultLimits())

	body := `{"action":"signup","eventId":1,"rideLevel":"mellow","firstName":"Alex","lastName":"Doe","email":"a@example.com"}`
	w := doJSON(t, r, http.MethodPost, "/event", body, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPostEventCancelByToken(t *testing.T) {
	e := newEnv()
	_, err := e.svc.Signup(context.Background(), guestParams("alex@example.com"))
	require.NoError(t, err)
	token := rawToken(t, e.notes.last(t))

	r, _ := newTestRouter(e, defaultLimits())
	body := fmt.Sprintf(`{"action":"cancel","token":%q}`, token)
	w := doJSON(t, r, http.MethodPost, "/event", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// repeat cancel reports not found
	w = doJSON(t, r, http.MethodPost, "/event", body, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostEventDuplicateConflict(t *testing.T) {
	e := newEnv()
	r, _ := newTestRouter(e, defaultLimits())

	body := `{"action":"signup","eventId":1,"rideLevel":"mellow","firstName":"Alex","lastName":"Doe","email":"alex@example.com"}`
	w := doJSON(t, r, http.MethodPost, "/event", body, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/event", body, "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostEventRateLimited(t *testing.T) {
	e := newEnv()
	limits := defaultLimits()
	limits.SignupMax = 2
	r, _ := newTestRouter(e, limits)

	for i := 0; i < 2; i++ {
		body := fmt.Sprintf(`{"action":"signup","eventId":1,"rideLevel":"mellow","firstName":"Alex","lastName":"Doe","email":"r%d@example.com"}`, i)
		w := doJSON(t, r, http.MethodPost, "/event", body, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	body := `{"action":"signup","eventId":1,"rideLevel":"mellow","firstName":"Alex","lastName":"Doe","email":"r3@example.com"}`
	w := doJSON(t, r, http.MethodPost, "/event", body, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestEventMethodNotAllowed(t *testing.T) {
	e := newEnv()
	r, _ := newTestRouter(e, defaultLimits())

	w := doJSON(t, r, http.MethodPut, "/event", `{}`, "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPostEventUpstreamUnavailable(t *testing.T) {
	e := newEnv()
	e.events.err = fmt.Errorf("cms down")
	r, _ := newTestRouter(e, defaultLimits())

	body := `{"action":"signup","eventId":1,"rideLevel":"mellow","firstName":"Alex","lastName":"Doe","email":"a@example.com"}`
	w := doJSON(t, r, http.MethodPost, "/event", body, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
