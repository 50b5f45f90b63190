package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// Response is a fully read HTTP response. The body is buffered so the
// underlying connection goes back to the pool before the caller sees it.
type Response struct {
	ID         uuid.UUID // correlation id, also logged with the request
	URL        *url.URL  // final URL after redirects
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie // session cookies for URL, redirects included
	Content    []byte
}

// OK reports whether the status is below 400.
func (r *Response) OK() bool {
	return r.StatusCode < http.StatusBadRequest
}

// Text returns the body decoded as UTF-8.
func (r *Response) Text() string {
	return string(r.Content)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Content, v); err != nil {
		return fmt.Errorf("failed to decode response %s as json: %w", r.ID, err)
	}
	return nil
}

func (r *Response) String() string {
	return fmt.Sprintf("<Response(%s) [%d]>", r.ID, r.StatusCode)
}
