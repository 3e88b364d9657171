// Package waitfor implements the wait-for command: block until every
// TCP or HTTP(S) target is reachable, retrying with exponential backoff
// inside an overall deadline.
package waitfor

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"initium/internal/logging"
	"initium/internal/retry"
)

// perRequestCap bounds how long any single dial or HTTP request may take,
// independently of the overall deadline.
const perRequestCap = 5 * time.Second

// Config describes one wait-for invocation.
type Config struct {
	Targets     []string
	Timeout     time.Duration
	HTTPStatus  int
	InsecureTLS bool
	Retry       retry.Config
}

// Validate rejects a Config that cannot run.
func (c Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("wait-for: at least one --target is required")
	}
	return c.Retry.Validate()
}

// Run probes every target until it is reachable or the overall timeout
// passes. The targets are independent endpoints, so their probe loops run
// concurrently; Run returns on the first target that exhausts its budget,
// or nil once all are reachable.
func Run(ctx context.Context, log *logging.Logger, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range cfg.Targets {
		g.Go(func() error {
			log.Info("waiting for target", "target", target)
			attempt := 0
			err := retry.Do(gctx, cfg.Retry, func(ctx context.Context) error {
				attempt++
				log.Debug("attempt", "target", target, "attempt", fmt.Sprint(attempt))
				return checkTarget(ctx, target, cfg.HTTPStatus, cfg.InsecureTLS)
			})
			if err != nil {
				log.Error("target not reachable", "target", target, "error", err.Error())
				return fmt.Errorf("target %s not reachable: %w", target, err)
			}
			log.Info("target is reachable", "target", target, "attempts", fmt.Sprint(attempt))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("all targets reachable")
	return nil
}

func checkTarget(ctx context.Context, target string, expectedStatus int, insecureTLS bool) error {
	switch {
	case strings.HasPrefix(target, "tcp://"):
		return checkTCP(ctx, strings.TrimPrefix(target, "tcp://"))
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		return checkHTTP(ctx, target, expectedStatus, insecureTLS)
	default:
		return fmt.Errorf("unsupported target scheme in %q; use tcp://, http://, or https://", target)
	}
}

func checkTCP(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: perRequestCap}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp dial %s: %w", addr, err)
	}
	return conn.Close()
}

func checkHTTP(ctx context.Context, url string, expectedStatus int, insecureTLS bool) error {
	client := &http.Client{
		Timeout:   perRequestCap,
		Transport: newTransport(insecureTLS),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != expectedStatus {
		return fmt.Errorf("http %s returned status %d, expected %d", url, resp.StatusCode, expectedStatus)
	}
	return nil
}

func newTransport(insecureTLS bool) *http.Transport {
	t := &http.Transport{ForceAttemptHTTP2: true}
	if insecureTLS {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return t
}
