package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/account-dashboard/internal/config"
	"github.com/jrsteele09/account-dashboard/internal/errors"
	"github.com/rs/zerolog/log"
)

const maxResponseBytes = 4 << 20

// Session supplies the bearer token for a single request. Refresh is called
// at most once per backend call, after the backend answered 401.
type Session interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Client calls the backend business API on behalf of a signed-in user.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func NewClient(cfg config.BackendConfig, options ...Option) *Client {
	c := &Client{
		baseURL: cfg.GetBackendURL(),
		http:    &http.Client{Timeout: cfg.GetBackendTimeout()},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do sends method path to the backend with the session's access token. A 401
// triggers exactly one refresh and one retry. When out is non-nil the 2xx
// body is decoded into it.
func (c *Client) Do(ctx context.Context, sess Session, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("[backend Do] encode body: %w", err)
		}
	}

	token, err := sess.AccessToken(ctx)
	if err != nil {
		return err
	}

	status, respBody, err := c.send(ctx, token, method, path, query, payload)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		log.Debug().Str("method", method).Str("path", path).Msg("Backend rejected access token, refreshing")
		if token, err = sess.Refresh(ctx); err != nil {
			return err
		}
		if status, respBody, err = c.send(ctx, token, method, path, query, payload); err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return &errors.UpstreamError{Status: status, Message: upstreamMessage(status, respBody)}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &errors.UpstreamError{Status: http.StatusBadGateway, Message: "invalid response from backend"}
	}
	return nil
}

func (c *Client) send(ctx context.Context, token, method, path string, query url.Values, payload []byte) (int, []byte, error) {
	op := method + " " + path
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("[backend send] %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		te := errors.NewTransportError(op, err)
		if !te.Canceled {
			log.Warn().Err(err).Str("op", op).Bool("timeout", te.Timeout).Msg("Backend unavailable")
		}
		return 0, nil, te
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, errors.NewTransportError(op, err)
	}
	log.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Backend response")
	return resp.StatusCode, respBody, nil
}

// upstreamMessage extracts the backend's "error" (or "message") field.
func upstreamMessage(status int, body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "backend error"
}
