package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	appLog "meetgrid/internal/log"
)

const maxICSBody = 10 << 20

// cacheEntry is the last good body for a URL plus its validators.
type cacheEntry struct {
	ETag         string
	LastModified string
	Body         []byte
}

// Fetcher fetches ICS feeds with conditional requests (ETag /
// Last-Modified), keeping the last good bodies in an expiring LRU.
type Fetcher struct {
	client *http.Client
	cache  *expirable.LRU[string, cacheEntry]
}

// NewFetcher creates a Fetcher remembering up to size feeds for ttl.
func NewFetcher(client *http.Client, size int, ttl time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if size <= 0 {
		size = 64
	}
	return &Fetcher{
		client: client,
		cache:  expirable.NewLRU[string, cacheEntry](size, nil, ttl),
	}
}

// Fetch returns the body at url. A 304 or a failed request falls back to the
// cached body when there is one.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, bool, error) {
	if url == "" {
		return nil, false, errors.New("ics fetch: url is empty")
	}
	cached, haveCache := f.cache.Get(url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if haveCache {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if haveCache {
			appLog.Error("ics fetch network error, using cached body", err, "url", redactURL(url))
			return cached.Body, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxICSBody+1))
		if err != nil {
			return nil, false, err
		}
		if len(body) > maxICSBody {
			err := fmt.Errorf("ics fetch: body exceeds %d bytes", maxICSBody)
			if haveCache {
				appLog.Error("ics fetch oversized, using cached body", err, "url", redactURL(url))
				return cached.Body, true, nil
			}
			return nil, false, err
		}
		f.cache.Add(url, cacheEntry{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			Body:         body,
		})
		appLog.Debug("ics fetch success", "url", redactURL(url), "bytes", len(body))
		return body, false, nil

	case http.StatusNotModified:
		if !haveCache {
			return nil, false, errors.New("ics fetch: 304 Not Modified without a cached body")
		}
		return cached.Body, true, nil

	default:
		if haveCache {
			appLog.Error("ics fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(url))
			return cached.Body, true, nil
		}
		return nil, false, fmt.Errorf("ics fetch: %s", resp.Status)
	}
}

// redactURL keeps only scheme and host; private feed URLs carry secrets.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
