// Package fetch implements the fetch command: retrieve a secret or
// configuration artifact over HTTP(S) and write it below the work
// directory, retrying with exponential backoff inside a deadline.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/net/http2"

	"initium/internal/logging"
	"initium/internal/pathsafe"
	"initium/internal/retry"
)

const maxRedirects = 10

// Config describes one fetch invocation.
type Config struct {
	URL         string
	Output      string
	Workdir     string
	AuthEnv     string
	InsecureTLS bool
	// FollowRedirects enables following up to 10 redirects;
	// AllowCrossSiteRedirects additionally permits redirects that change
	// host, which is off by default since the fetched artifact may be a
	// secret.
	FollowRedirects         bool
	AllowCrossSiteRedirects bool
	Timeout                 time.Duration
	Retry                   retry.Config
}

// Validate rejects a Config that cannot run.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("fetch: --url is required")
	}
	if c.Output == "" {
		return fmt.Errorf("fetch: --output is required")
	}
	if c.AllowCrossSiteRedirects && !c.FollowRedirects {
		return fmt.Errorf("fetch: --allow-cross-site-redirects requires --follow-redirects")
	}
	return c.Retry.Validate()
}

// Run fetches cfg.URL and writes the body to cfg.Output below
// cfg.Workdir, retrying per cfg.Retry until the overall timeout passes.
func Run(ctx context.Context, log *logging.Logger, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	log.Info("fetching", "url", cfg.URL, "output", cfg.Output)

	attempt := 0
	err := retry.Do(ctx, cfg.Retry, func(ctx context.Context) error {
		attempt++
		log.Debug("fetch attempt", "attempt", fmt.Sprint(attempt))
		return doFetch(ctx, cfg)
	})
	if err != nil {
		log.Error("fetch failed", "url", cfg.URL, "error", err.Error())
		return fmt.Errorf("fetch %s failed: %w", cfg.URL, err)
	}

	log.Info("fetch completed", "url", cfg.URL, "output", cfg.Output, "attempts", fmt.Sprint(attempt))
	return nil
}

func doFetch(ctx context.Context, cfg Config) error {
	outPath, err := pathsafe.Resolve(cfg.Workdir, cfg.Output)
	if err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", cfg.URL, err)
	}
	if cfg.AuthEnv != "" {
		authVal := os.Getenv(cfg.AuthEnv)
		if authVal == "" {
			return fmt.Errorf("auth env var %q is empty or not set", cfg.AuthEnv)
		}
		req.Header.Set("Authorization", authVal)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to %s: %w", cfg.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %s returned status %d", cfg.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(outPath, body, 0o600); err != nil {
		return fmt.Errorf("writing output %q: %w", outPath, err)
	}
	return nil
}

func newClient(cfg Config) (*http.Client, error) {
	transport := &http.Transport{}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configuring HTTP/2 transport: %w", err)
	}

	client := &http.Client{Transport: transport}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if !cfg.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if !cfg.AllowCrossSiteRedirects && req.URL.Host != via[0].URL.Host {
			return fmt.Errorf("cross-site redirect to %s blocked (use --allow-cross-site-redirects)", req.URL.Host)
		}
		return nil
	}
	return client, nil
}
