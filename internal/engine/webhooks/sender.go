package webhooks

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Response is what a Sender observed from the endpoint. Non-2xx statuses are not errors.
type Response struct {
	StatusCode int
	Body       []byte
}

// Sender posts a signed body to a URL.
type Sender interface {
	Post(ctx context.Context, url string, body []byte, header http.Header) (*Response, error)
}

// HTTPSender is the net/http Sender.
type HTTPSender struct {
	client  *http.Client
	maxBody int64
}

func NewHTTPSender(timeout time.Duration, maxBody int64) *HTTPSender {
	if maxBody <= 0 {
		maxBody = 4096
	}
	return &HTTPSender{
		client: &http.Client{
			Timeout: timeout,
			// A 3xx is the endpoint's answer; following it would replay the POST as a bodyless GET.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxBody: maxBody,
	}
}

func (s *HTTPSender) Post(ctx context.Context, url string, body []byte, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, err
	}
	// Drain a bounded remainder so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
