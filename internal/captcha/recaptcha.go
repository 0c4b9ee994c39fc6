// Package captcha verifies reCAPTCHA tokens against the siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"evento/internal/config"
	"evento/internal/metrics"
)

var (
	// ErrRejected means the token was checked and refused
	ErrRejected = errors.New("captcha verification failed")
	// ErrUnavailable means the verification service could not be reached
	ErrUnavailable = errors.New("captcha service unavailable")
)

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	Action     string   `json:"action,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// Verifier checks CAPTCHA tokens
type Verifier struct {
	enabled   bool
	secret    string
	verifyURL string
	minScore  float64
	client    *http.Client
}

// NewVerifier creates a verifier from configuration. A disabled verifier
// accepts every token.
func NewVerifier(cfg config.CaptchaConfig) *Verifier {
	return &Verifier{
		enabled:   cfg.Enabled,
		secret:    cfg.Secret,
		verifyURL: cfg.VerifyURL,
		minScore:  cfg.MinScore,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether tokens are checked at all
func (v *Verifier) Enabled() bool { return v.enabled }

// Verify checks token. Scores are only compared for v3 responses that carry one.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.enabled {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: missing token", ErrRejected)
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := v.client.Do(req)
	if err != nil {
		metrics.ObserveExternalCall("recaptcha", "error", time.Since(start))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveExternalCall("recaptcha", "error", time.Since(start))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.ObserveExternalCall("recaptcha", "error", time.Since(start))
		return fmt.Errorf("%w: invalid response: %v", ErrUnavailable, err)
	}
	metrics.ObserveExternalCall("recaptcha", "ok", time.Since(start))

	if !out.Success {
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(out.ErrorCodes, ","))
	}
	if out.Score != nil && *out.Score < v.minScore {
		return fmt.Errorf("%w: score %.2f below %.2f", ErrRejected, *out.Score, v.minScore)
	}
	return nil
}
