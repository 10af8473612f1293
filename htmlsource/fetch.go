package htmlsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls2 "github.com/refraction-networking/utls"
	"golang.org/x/net/html"
	xproxy "golang.org/x/net/proxy"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps how much of a page is read.
const maxBody = 10 * 1024 * 1024

// ErrBlocked is returned when a site answers with a bot wall instead of
// content.
var ErrBlocked = errors.New("htmlsource: blocked by site")

// Fetcher performs GET requests with a Chrome TLS fingerprint (utls).
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher. proxy may be an http(s) or socks5 URL, or
// empty for direct connections. timeout bounds each request; zero means no
// limit beyond the caller's context.
func NewFetcher(proxy string, timeout time.Duration) *Fetcher {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, proxy)
		},
	}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &Fetcher{client: &http.Client{Transport: transport, Timeout: timeout}}
}

// Fetch retrieves targetURL and returns its body.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("htmlsource: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("htmlsource: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrBlocked, resp.StatusCode, targetURL)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("htmlsource: HTTP %d for %s", resp.StatusCode, targetURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("htmlsource: read body: %w", err)
	}
	return body, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr, proxy string) (net.Conn, error) {
	var rawConn net.Conn
	dialer := &net.Dialer{}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil && (proxyURL.Scheme == "socks5" || proxyURL.Scheme == "socks5h") {
			d, err := xproxy.FromURL(proxyURL, dialer)
			if err != nil {
				return nil, fmt.Errorf("socks5 proxy: %w", err)
			}
			cd, ok := d.(xproxy.ContextDialer)
			if !ok {
				return nil, errors.New("socks5 proxy: dialer does not support context")
			}
			conn, err := cd.DialContext(ctx, network, addr)
			if err != nil {
				return nil, fmt.Errorf("socks5 dial: %w", err)
			}
			rawConn = conn
		}
	}

	if rawConn == nil {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		rawConn = conn
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host}, tls2.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// looksBlocked reports whether body is a bot wall: its title or the start
// of its visible text carries one of markers.
func looksBlocked(body []byte, markers []string) bool {
	if len(markers) == 0 {
		return false
	}
	title := strings.ToLower(pageTitle(body))
	text := strings.ToLower(visibleText(body, 2000))
	for _, m := range markers {
		m = strings.ToLower(m)
		if strings.Contains(title, m) || strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// pageTitle extracts the <title> content from raw HTML bytes.
func pageTitle(body []byte) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := z.TagName()
			if string(tn) == "title" {
				if z.Next() == html.TextToken {
					return strings.TrimSpace(string(z.Text()))
				}
				return ""
			}
		}
	}
}

// visibleText returns up to limit bytes of the text inside <body>, skipping
// script and style content.
func visibleText(body []byte, limit int) string {
	z := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skip := 0

	for buf.Len() < limit {
		switch z.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := z.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skip++
			}
		case html.EndTagToken:
			tn, _ := z.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if inBody && skip == 0 {
				if t := strings.TrimSpace(string(z.Text())); t != "" {
					buf.WriteString(t)
					buf.WriteByte(' ')
				}
			}
		}
	}
	return buf.String()
}
