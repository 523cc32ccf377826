// Package turnstile verifies bot-check tokens against the Cloudflare
// Turnstile siteverify endpoint.
package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpoint is the Cloudflare siteverify URL.
const DefaultEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier checks Turnstile tokens. An empty secret disables verification
// and every guest passes (local development).
type Verifier struct {
	secret   string
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// New creates a verifier. timeout bounds each verification call.
func New(secret string, timeout time.Duration, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		secret:   secret,
		endpoint: DefaultEndpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// WithEndpoint overrides the siteverify URL (tests).
func (v *Verifier) WithEndpoint(endpoint string) *Verifier {
	v.endpoint = endpoint
	return v
}

// Verify reports whether the token passes the bot check. A transport error
// is returned to the caller, which decides how to degrade.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if v.secret == "" {
		return true, nil
	}
	if token == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify status %d", resp.StatusCode)
	}

	var body struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode siteverify response: %w", err)
	}
	if !body.Success {
		v.logger.Debug("turnstile rejected token", zap.Strings("error_codes", body.ErrorCodes))
	}
	return body.Success, nil
}
