// Package dtfapi is a typed client for the DTF messenger REST API. Every
// operation returns a Result; expected failures never surface as Go errors.
package dtfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// TokenProvider supplies the bearer token for each request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Options configures a Client.
type Options struct {
	BaseURL     string
	TokenHeader string
	Timeout     time.Duration
	UserAgent   string
}

// Client issues authenticated requests to the messenger API.
type Client struct {
	http   *resty.Client
	tokens TokenProvider
	header string
	log    zerolog.Logger
}

// New creates a client. The token is resolved from tokens on every call.
func New(opts Options, tokens TokenProvider, log zerolog.Logger) *Client {
	if opts.TokenHeader == "" {
		opts.TokenHeader = "JWTAuthorization"
	}

	hc := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{log: log})
	if opts.Timeout > 0 {
		hc.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		hc.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Client{
		http:   hc,
		tokens: tokens,
		header: opts.TokenHeader,
		log:    log,
	}
}

// envelope is the raw API wrapper. Older endpoints report failures through
// message/error fields on a 2xx response.
type envelope struct {
	Result  json.RawMessage `json:"result"`
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

// call performs one request and decodes the result payload into T.
func call[T any](ctx context.Context, c *Client, method, path string, prepare func(r *resty.Request)) Result[T] {
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		return Fail[T](CodeNotAuthenticated, "not authenticated")
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader(c.header, "Bearer "+token)
	if prepare != nil {
		prepare(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return Fail[T](CodeNetwork, fmt.Sprintf("network error: %v", unwrapURLError(err)))
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("request")

	body := resp.Body()
	if resp.IsError() || resp.StatusCode() >= 300 {
		return Fail[T](resp.StatusCode(), errorMessage(body, resp.StatusCode()))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Fail[T](CodeMalformedResponse, "malformed response: "+err.Error())
	}

	if (env.Success != nil && !*env.Success) || !isNull(env.Error) {
		code := resp.StatusCode()
		if info := decodeErrorField(env.Error); info.Code != 0 {
			code = info.Code
		}
		return Fail[T](code, errorMessage(body, resp.StatusCode()))
	}

	var out T
	if !isNull(env.Result) {
		if err := json.Unmarshal(env.Result, &out); err != nil {
			return Fail[T](CodeMalformedResponse, "malformed response: "+err.Error())
		}
	}
	return Ok(out)
}

// mapResult converts the payload of a successful result. A conversion error
// marks the response as malformed.
func mapResult[T, U any](r Result[U], fn func(U) (T, error)) Result[T] {
	if !r.Success {
		return failWith[T](r)
	}
	v, err := fn(r.Result)
	if err != nil {
		return Fail[T](CodeMalformedResponse, "malformed response: "+err.Error())
	}
	return Ok(v)
}

// errorMessage picks the most descriptive message out of an error body.
func errorMessage(body []byte, status int) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if info := decodeErrorField(env.Error); info.Message != "" {
			return info.Message
		}
		if env.Message != "" {
			return env.Message
		}
	}

	text := strings.TrimSpace(string(body))
	if text != "" && !bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) && len(text) < 200 {
		return text
	}

	if status == 0 {
		return "network error"
	}
	return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
}

// decodeErrorField accepts both {"error": "text"} and {"error": {"code": n, "message": "text"}}.
func decodeErrorField(raw json.RawMessage) ErrorInfo {
	if isNull(raw) {
		return ErrorInfo{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ErrorInfo{Message: s}
	}

	var info ErrorInfo
	_ = json.Unmarshal(raw, &info)
	return info
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false"))
}

// unwrapURLError strips the method and URL resty prepends to transport errors.
func unwrapURLError(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok && u.Unwrap() != nil {
		return u.Unwrap()
	}
	return err
}

// restyLogger routes resty's internal warnings through zerolog.
type restyLogger struct {
	log zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) { l.log.Error().Msgf(format, v...) }
func (l restyLogger) Warnf(format string, v ...any)  { l.log.Warn().Msgf(format, v...) }
func (l restyLogger) Debugf(format string, v ...any) { l.log.Debug().Msgf(format, v...) }
