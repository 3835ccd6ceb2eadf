package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender_Post(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "yes", r.Header.Get("X-Probe"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"ok":true}`, string(body))

		w.WriteHeader(http.StatusTeapot)
		io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("X-Probe", "yes")

	resp, err := NewHTTPSender(time.Second, 10).Post(context.Background(), srv.URL, []byte(`{"ok":true}`), header)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, strings.Repeat("x", 10), string(resp.Body))
}

func TestHTTPSender_InvalidURL(t *testing.T) {
	_, err := NewHTTPSender(time.Second, 0).Post(context.Background(), "http://[::1", nil, http.Header{})
	assert.Error(t, err)
}
