package crawler

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/common"
)

// userAgents is the desktop rotation pool; requests cycle through it so a
// single worker does not present one fingerprint for a whole session.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:115.0) Gecko/20100101 Firefox/115.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
}

// referers rotate alongside; empty entries send no Referer at all.
var referers = []string{
	"",
	"http://juhanurmihxlp77nkq76byazcldy2hlmovfu2epvl5ankdibsot4csyd.onion/",
	"",
	"http://zqktlwiuavvvqqt4ybvgvi7tyo4hjl5xgfuvpdf6otjiycgwqbym2qad.onion/wiki/index.php/Main_Page",
	"",
}

// TorClient is one worker's proxied HTTP client. The transport is rebuilt
// after recycleAfter fetches and whenever the shared circuit generation
// advances, so RotateCircuit takes effect without restarting workers.
type TorClient struct {
	logger       arbor.ILogger
	proxy        *url.URL // nil means direct connections
	timeout      time.Duration
	recycleAfter int
	generation   *atomic.Int64

	mu       sync.Mutex
	client   *http.Client
	fetches  int
	builtGen int64
	rotation int
}

func newTorClient(logger arbor.ILogger, proxy *url.URL, timeout time.Duration, recycleAfter int, generation *atomic.Int64) *TorClient {
	if recycleAfter <= 0 {
		recycleAfter = 40
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &TorClient{
		logger:       logger,
		proxy:        proxy,
		timeout:      timeout,
		recycleAfter: recycleAfter,
		generation:   generation,
	}
}

// Fetch performs one GET through the proxy with the rotating header set
func (c *TorClient) Fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", rawURL, err)
	}

	client, rotation := c.take()

	req.Header.Set("User-Agent", userAgents[rotation%len(userAgents)])
	if referer := referers[rotation%len(referers)]; referer != "" {
		req.Header.Set("Referer", referer)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Connection", "keep-alive")

	return client.Do(req)
}

// take returns the current client, rebuilding it at the recycle boundary
// or when the circuit generation has moved.
func (c *TorClient) take() (*http.Client, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var gen int64
	if c.generation != nil {
		gen = c.generation.Load()
	}

	if c.client == nil || c.fetches >= c.recycleAfter || gen != c.builtGen {
		if c.client != nil {
			c.client.CloseIdleConnections()
			c.logger.Debug().
				Int("fetches", c.fetches).
				Int64("generation", gen).
				Msg("Recycling HTTP session")
		}
		c.client = buildHTTPClient(c.proxy, c.timeout)
		c.builtGen = gen
		c.fetches = 0
	}

	c.fetches++
	c.rotation++
	return c.client, c.rotation
}

// Close releases idle connections held by the current transport
func (c *TorClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
}

// buildHTTPClient builds the proxied transport. Hostname resolution
// happens at the proxy, never locally; onion names must not leak to DNS.
func buildHTTPClient(proxy *url.URL, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     60 * time.Second,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// proxyAddress builds the SOCKS URL for a given port. Go's transport takes
// the socks5 scheme and defers name resolution to the proxy.
func proxyAddress(config *common.ProxyConfig, port int) (*url.URL, error) {
	if config.Host == "" {
		return nil, nil
	}
	scheme := config.Scheme
	if scheme == "" || scheme == "socks5h" {
		scheme = "socks5"
	}
	return url.Parse(fmt.Sprintf("%s://%s:%d", scheme, config.Host, port))
}

// torCheckResponse is the body of the overlay verification endpoint
type torCheckResponse struct {
	IsTor bool   `json:"IsTor"`
	IP    string `json:"IP"`
}

// verifyProxy confirms the proxy exits inside the overlay network and
// returns the exit IP.
func verifyProxy(ctx context.Context, proxy *url.URL, verifyURL string, timeout time.Duration) (string, error) {
	client := buildHTTPClient(proxy, timeout)
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, verifyURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid verify url: %w", err)
	}
	req.Header.Set("User-Agent", userAgents[0])

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("proxy check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("proxy check returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("proxy check read failed: %w", err)
	}

	var check torCheckResponse
	if err := json.Unmarshal(body, &check); err != nil {
		return "", fmt.Errorf("proxy check returned malformed body: %w", err)
	}
	if !check.IsTor {
		return "", fmt.Errorf("proxy exit %s is not inside the overlay", check.IP)
	}
	return check.IP, nil
}
