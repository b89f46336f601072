package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// apiTimeout bounds each candidate endpoint attempt.
const apiTimeout = 10 * time.Second

// defaultCheckInEndpoints are the candidate check-in paths, tried in order.
// None of them is a confirmed contract; the list is a field on the client so
// site-specific knowledge can replace it.
var defaultCheckInEndpoints = []string{
	"/api/user/sign",
	"/api/user/reward/sign",
	"/api/account/sign",
}

// fallbackClient performs the check-in over plain HTTP when no UI control can
// be found, reusing the browser's cookies and user agent so the request looks
// like it came from the live session.
type fallbackClient struct {
	baseURL   string
	referer   string
	userAgent string
	endpoints []string
	http      *http.Client
}

func newFallbackClient(cfg appConfig, cookies []*http.Cookie, userAgent string) *fallbackClient {
	jar, _ := cookiejar.New(nil)
	if jar != nil && len(cookies) > 0 {
		if u, err := url.Parse(cfg.BaseURL); err == nil {
			jar.SetCookies(u, cookies)
		}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = cfg.UserAgent
	}
	return &fallbackClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		referer:   cfg.accountURL(),
		userAgent: userAgent,
		endpoints: defaultCheckInEndpoints,
		http: &http.Client{
			Timeout: apiTimeout,
			Jar:     jar,
		},
	}
}

// checkInResponse is the structured body a check-in endpoint returns. Code is
// a pointer so an absent field is not mistaken for the zero success code.
type checkInResponse struct {
	Code    *int   `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (r checkInResponse) succeeded() bool {
	return (r.Code != nil && *r.Code == 0) || r.Success
}

// checkIn POSTs each candidate endpoint in order and short-circuits on the
// first success. A transport or parse fault on one candidate just moves on to
// the next; false means every candidate failed.
func (c *fallbackClient) checkIn(ctx context.Context, log *logger) bool {
	for _, path := range c.endpoints {
		ok, err := c.post(ctx, path)
		if err != nil {
			log.warnf("api %s: %v", path, err)
			continue
		}
		if ok {
			log.okf("api check-in succeeded via %s", path)
			return true
		}
	}
	return false
}

func (c *fallbackClient) post(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader("{}"))
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.referer)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	const maxResponseSize = 1 * 1024 * 1024
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	var out checkInResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return false, fmt.Errorf("parse response: %w", err)
	}
	return out.succeeded(), nil
}
