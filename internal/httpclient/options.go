package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Option customises a single call. Nothing set here outlives the call.
type Option func(*request)

type request struct {
	params   url.Values
	header   http.Header
	cookies  []*http.Cookie
	form     url.Values
	json     any
	timeout  time.Duration
	insecure bool
}

// WithParams adds query parameters to the URL.
func WithParams(params map[string]string) Option {
	return func(r *request) {
		for k, v := range params {
			r.params.Add(k, v)
		}
	}
}

// WithHeader sets one request header.
func WithHeader(key, value string) Option {
	return func(r *request) {
		r.header.Set(key, value)
	}
}

// WithCookies attaches cookies, typically the ones returned by a login call.
func WithCookies(cookies []*http.Cookie) Option {
	return func(r *request) {
		r.cookies = append(r.cookies, cookies...)
	}
}

// WithForm sends an application/x-www-form-urlencoded body.
func WithForm(form map[string]string) Option {
	return func(r *request) {
		for k, v := range form {
			r.form.Set(k, v)
		}
	}
}

// WithJSON sends v encoded as JSON.
func WithJSON(v any) Option {
	return func(r *request) {
		r.json = v
	}
}

// WithTimeout overrides the total timeout for this call.
func WithTimeout(d time.Duration) Option {
	return func(r *request) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithInsecureSkipVerify routes the call through the pool that skips TLS
// certificate verification.
func WithInsecureSkipVerify() Option {
	return func(r *request) {
		r.insecure = true
	}
}

func (r *request) body() (io.Reader, string, error) {
	switch {
	case r.json != nil:
		data, err := json.Marshal(r.json)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal json body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	case len(r.form) > 0:
		return strings.NewReader(r.form.Encode()), "application/x-www-form-urlencoded", nil
	default:
		return http.NoBody, "", nil
	}
}
