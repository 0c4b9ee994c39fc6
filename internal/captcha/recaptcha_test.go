package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evento/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(url string) *Verifier {
	return NewVerifier(config.CaptchaConfig{
		Enabled:   true,
		Secret:    "secret",
		VerifyURL: url,
		MinScore:  0.5,
		Timeout:   2 * time.Second,
	})
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		wantErr error
	}{
		{name: "v2 success", body: `{"success": true}`, status: http.StatusOK},
		{name: "v3 score above minimum", body: `{"success": true, "score": 0.9}`, status: http.StatusOK},
		{name: "v3 score below minimum", body: `{"success": true, "score": 0.1}`, status: http.StatusOK, wantErr: ErrRejected},
		{name: "refused", body: `{"success": false, "error-codes": ["invalid-input-response"]}`, status: http.StatusOK, wantErr: ErrRejected},
		{name: "server error", body: `oops`, status: http.StatusInternalServerError, wantErr: ErrUnavailable},
		{name: "garbage", body: `not json`, status: http.StatusOK, wantErr: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "secret", r.PostForm.Get("secret"))
				assert.Equal(t, "token", r.PostForm.Get("response"))
				assert.Equal(t, "10.0.0.1", r.PostForm.Get("remoteip"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := newVerifier(srv.URL).Verify(context.Background(), "token", "10.0.0.1")
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVerify_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newVerifier(url).Verify(context.Background(), "token", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerify_MissingToken(t *testing.T) {
	err := newVerifier("http://127.0.0.1:1").Verify(context.Background(), " ", "")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestVerify_Disabled(t *testing.T) {
	v := NewVerifier(config.CaptchaConfig{Enabled: false})
	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify(context.Background(), "", ""))
}
