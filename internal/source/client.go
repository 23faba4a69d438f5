package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rahul/postsync/internal/store"
)

// NetworkError reports a transport-level failure: connection error,
// timeout, or a non-2xx response.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError reports a response body that could not be parsed into the
// expected post shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode error: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// Client fetches the post feed from a remote JSON endpoint. It issues a
// single whole-response GET and never retries; the caller owns retry
// policy and cancels via the request context.
type Client struct {
	URL       string
	UserAgent string

	http      *http.Client
	sanitizer *bluemonday.Policy
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		URL:       url,
		UserAgent: "postsync/1.0",
		http: &http.Client{
			Timeout: timeout,
		},
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Fetch retrieves and decodes the post feed. Title and body are
// sanitized before they are returned: feed content is untrusted and
// ends up in the terminal and the database.
func (c *Client) Fetch(ctx context.Context) ([]store.Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Err: fmt.Errorf("unexpected status code %d", resp.StatusCode)}
	}

	// Pointer fields so a missing id/title/body is distinguishable from
	// a zero value. Extra fields (e.g. userId) are ignored.
	var raw []struct {
		ID    *int    `json:"id"`
		Title *string `json:"title"`
		Body  *string `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &DecodeError{Err: err}
	}

	posts := make([]store.Post, 0, len(raw))
	for i, r := range raw {
		if r.ID == nil {
			return nil, &DecodeError{Err: fmt.Errorf("record %d: missing id", i)}
		}
		if r.Title == nil {
			return nil, &DecodeError{Err: fmt.Errorf("record %d: missing title", i)}
		}
		if r.Body == nil {
			return nil, &DecodeError{Err: fmt.Errorf("record %d: missing body", i)}
		}
		posts = append(posts, store.Post{
			ID:    *r.ID,
			Title: c.sanitizer.Sanitize(*r.Title),
			Body:  c.sanitizer.Sanitize(*r.Body),
		})
	}
	return posts, nil
}
