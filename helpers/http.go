package helpers

import (
	"bytes"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/html/charset"

	apperrors "bizfinder/pkg/errors"
)

// Marketplace index pages sit behind aggressive bot detection, so direct
// fetches rotate browser identities instead of announcing a Go client.
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}

	client = &http.Client{
		Timeout: 10 * time.Second,
	}
)

// SetProxy routes all helper fetches through the given proxy address.
// Passing an empty address restores direct connections.
func SetProxy(addr string) error {
	if addr == "" {
		client.Transport = nil
		return nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return apperrors.NewConfiguration(fmt.Sprintf("invalid proxy address %q", addr), err)
	}
	client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	return nil
}

// FetchWithRandomHeaders fetches a URL posing as a browser and returns the
// body converted to UTF-8. Rate-limit responses surface as a rate_limit
// error with the server's Retry-After when given.
func FetchWithRandomHeaders(pageURL string) (io.Reader, error) {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, apperrors.NewNetwork("fetch", fmt.Sprintf("failed to create request for %s", pageURL), err)
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperrors.NewNetwork("fetch", fmt.Sprintf("failed to fetch %s", pageURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 430 {
		return nil, apperrors.NewRateLimit("fetch", retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetwork("fetch",
			fmt.Sprintf("fetch %s unexpected status code: %d", pageURL, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetwork("fetch", "failed to read response body", err)
	}

	return toUTF8(body, resp.Header.Get("Content-Type"))
}

// retryAfter parses the Retry-After header, defaulting to a minute
func retryAfter(resp *http.Response) time.Duration {
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Minute
}

// toUTF8 converts a response body to UTF-8 based on its declared or
// sniffed encoding
func toUTF8(body []byte, contentType string) (io.Reader, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return bytes.NewReader(body), nil
	}

	decoded := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, decoded); err != nil {
		return nil, apperrors.NewParsing("fetch", "failed to convert body to UTF-8", err)
	}
	return &buf, nil
}
