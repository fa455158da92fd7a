package openbanking

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"

	"erpfin/bank-sync/internal/logging"
)

// MaxPages bounds a single paginated fetch.
const MaxPages = 10000

// Page is one page of a provider listing. Bare JSON arrays decode as a single page.
type Page struct {
	Results    []Payload `json:"results"`
	Next       string    `json:"next"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	Total      int       `json:"total"`
}

// UnmarshalJSON accepts either a page object or a bare array of results.
func (p *Page) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		*p = Page{}
		return DecodeJSON(trimmed, &p.Results)
	}
	type page Page
	var raw page
	if err := DecodeJSON(trimmed, &raw); err != nil {
		return err
	}
	*p = Page(raw)
	return nil
}

// NextPageFunc returns the URL of the page after current, or false when current was
// the last one.
type NextPageFunc func(current string, page Page) (string, bool, error)

// FollowNext follows the page's next link, resolved against the current URL.
func FollowNext(current string, page Page) (string, bool, error) {
	if page.Next == "" {
		return "", false, nil
	}
	next, err := ResolveURL(current, page.Next)
	if err != nil {
		return "", false, err
	}
	return next, true, nil
}

// FollowNextOrPageNumber follows the next link when present, otherwise requests
// page+1 while it does not exceed totalPages.
func FollowNextOrPageNumber(current string, page Page) (string, bool, error) {
	if page.Next != "" {
		return FollowNext(current, page)
	}
	if page.Page <= 0 || page.Page >= page.TotalPages {
		return "", false, nil
	}
	next, err := WithQuery(current, "page", strconv.Itoa(page.Page+1))
	if err != nil {
		return "", false, err
	}
	return next, true, nil
}

// FetchAll collects the results of every page starting at firstURL. Credential
// renewals happen inside each request, so a 401 resumes on the page that failed.
func FetchAll(ctx context.Context, client *Client, firstURL string, next NextPageFunc, logger logging.Logger) ([]Payload, error) {
	logger = logging.OrDefault(logger)
	var results []Payload
	visited := make(map[string]bool)

	current := firstURL
	for pageNum := 1; ; pageNum++ {
		if pageNum > MaxPages {
			return nil, fmt.Errorf("%s: pagination exceeded %d pages", client.provider, MaxPages)
		}
		visited[current] = true

		var page Page
		if err := client.GetJSON(ctx, current, &page); err != nil {
			return nil, err
		}
		results = append(results, page.Results...)
		logger.Debug("Fetched page",
			logging.Field{Key: logging.FieldPage, Value: pageNum},
			logging.Field{Key: logging.FieldCount, Value: len(page.Results)})

		if len(page.Results) == 0 {
			return results, nil
		}
		nextURL, ok, err := next(current, page)
		if err != nil {
			return nil, err
		}
		if !ok {
			return results, nil
		}
		if visited[nextURL] {
			logger.Warn("Pagination loop detected, stopping",
				logging.Field{Key: logging.FieldPage, Value: pageNum})
			return results, nil
		}
		current = nextURL
	}
}

// ResolveURL resolves ref against base.
func ResolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid next URL %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// WithQuery returns rawURL with key set to value.
func WithQuery(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Endpoint joins a base URL, a path and query parameters. Empty values are omitted.
func Endpoint(baseURL, path string, params url.Values) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	u.Path = joinPath(u.Path, path)
	q := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func joinPath(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	return base + path
}
