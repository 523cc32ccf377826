package registrations

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiezrad/backend/config"
	"github.com/kiezrad/backend/internal/auth"
	"github.com/kiezrad/backend/internal/ratelimit"
	"github.com/kiezrad/backend/pkg/response"
)

// EventRequest is the body for POST /event; Action selects the operation.
type EventRequest struct {
	Action         string `json:"action"`
	EventID        int64  `json:"eventId"`
	RideLevel      string `json:"rideLevel"`
	EventType      string `json:"eventType"`
	FlintaAttested bool   `json:"flintaAttested"`
	EventTitle     string `json:"eventTitle"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	TurnstileToken string `json:"turnstileToken"`
	Token          string `json:"token"`
}

// Handler handles the event registration HTTP surface.
type Handler struct {
	svc     *Service
	jwt     *auth.JWTService
	limiter *ratelimit.Limiter
	limits  config.RateLimitConfig
	logger  *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, jwt *auth.JWTService, limiter *ratelimit.Limiter, limits config.RateLimitConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, jwt: jwt, limiter: limiter, limits: limits, logger: logger}
}

// GetCapacity handles GET /event?eventId=<int>. Returns confirmed counts per
// ride level and their total.
func (h *Handler) GetCapacity(c *gin.Context) {
	if !h.allow(c, "event:capacity", h.limits.CapacityWindowSec, h.limits.CapacityMax) {
		return
	}
	eventID, err := strconv.ParseInt(c.Query("eventId"), 10, 64)
	if err != nil || eventID <= 0 {
		response.BadRequest(c, "a valid eventId is required")
		return
	}
	counts, total, err := h.svc.LevelCounts(c.Request.Context(), eventID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{
		"eventId": eventID,
		"total":   total,
		"counts":  counts,
	})
}

// PostEvent handles POST /event, dispatching on the action field.
func (h *Handler) PostEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	switch req.Action {
	case "signup":
		h.signup(c, req)
	case "cancel":
		h.cancel(c, req)
	default:
		response.BadRequest(c, "unknown action")
	}
}

func (h *Handler) signup(c *gin.Context, req EventRequest) {
	if !h.allow(c, "event:signup", h.limits.SignupWindowSec, h.limits.SignupMax) {
		return
	}
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	res, err := h.svc.Signup(c.Request.Context(), SignupParams{
		EventID:        req.EventID,
		RideLevel:      req.RideLevel,
		EventType:      req.EventType,
		EventTitle:     req.EventTitle,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		FlintaAttested: req.FlintaAttested,
		TurnstileToken: req.TurnstileToken,
		RemoteIP:       c.ClientIP(),
		UserID:         userID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"waitlisted": res.Waitlisted})
}

func (h *Handler) cancel(c *gin.Context, req EventRequest) {
	if !h.allow(c, "event:cancel", h.limits.CancelWindowSec, h.limits.CancelMax) {
		return
	}
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	err := h.svc.Cancel(c.Request.Context(), CancelParams{
		EventID:   req.EventID,
		RideLevel: req.RideLevel,
		Token:     req.Token,
		UserID:    userID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"cancelled": true})
}

// allow runs the rate limiter as the first gate of every operation. On
// rejection it writes 429 and reports false.
func (h *Handler) allow(c *gin.Context, action string, windowSec, max int) bool {
	clientID := ratelimit.ClientID(c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr)
	if !h.limiter.Allow(c.Request.Context(), action, clientID, time.Duration(windowSec)*time.Second, max) {
		response.TooManyRequests(c, "too many requests, please slow down")
		return false
	}
	return true
}

// authenticate resolves an optional bearer token. No header means a guest
// request; a present but invalid token is rejected with 401.
func (h *Handler) authenticate(c *gin.Context) (*uuid.UUID, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, true
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		response.Unauthorized(c, "invalid authorization header")
		return nil, false
	}
	claims, err := h.jwt.Validate(parts[1])
	if err != nil {
		response.Unauthorized(c, "invalid or expired session")
		return nil, false
	}
	return &claims.UserID, true
}

// fail maps service errors to HTTP statuses, logging internal causes without
// leaking them to the caller.
func (h *Handler) fail(c *gin.Context, err error) {
	appErr, ok := err.(*Error)
	if !ok {
		h.logger.Error("unclassified error", zap.Error(err))
		response.Internal(c, "something went wrong")
		return
	}
	if cause := appErr.Unwrap(); cause != nil {
		h.logger.Error(appErr.Message, zap.Error(cause), zap.String("path", c.Request.URL.Path))
	}
	switch appErr.Kind {
	case KindValidation:
		response.BadRequest(c, appErr.Message)
	case KindUnauthorized:
		response.Unauthorized(c, appErr.Message)
	case KindForbidden:
		response.Forbidden(c, appErr.Message)
	case KindNotFound:
		response.NotFound(c, appErr.Message)
	case KindConflict:
		response.Conflict(c, appErr.Message)
	case KindUpstream:
		response.BadGateway(c, appErr.Message)
	default:
		response.Internal(c, appErr.Message)
	}
}
