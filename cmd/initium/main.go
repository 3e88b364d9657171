// Package main contains the cli implementation of the tool. It uses cobra
// package for cli tool implementation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"initium/internal/duration"
	"initium/internal/fetch"
	"initium/internal/logging"
	"initium/internal/migrate"
	"initium/internal/pathsafe"
	"initium/internal/proc"
	"initium/internal/render"
	"initium/internal/retry"
	"initium/internal/seed"
	"initium/internal/waitfor"
)

type rootFlags struct {
	json    bool
	logFile string
}

type waitForFlags struct {
	targets       []string
	timeout       string
	maxAttempts   int
	initialDelay  int
	maxDelay      int
	backoffFactor float64
	jitter        float64
	httpStatus    int
	insecureTLS   bool
}

type migrateFlags struct {
	driver      string
	databaseURL string
	urlEnv      string
	migrations  string
	workdir     string
	lockFile    string
	lockTimeout string
}

type seedFlags struct {
	spec  string
	reset bool
}

type renderFlags struct {
	template string
	output   string
	workdir  string
	mode     string
}

type fetchFlags struct {
	url                     string
	output                  string
	workdir                 string
	authEnv                 string
	insecureTLS             bool
	followRedirects         bool
	allowCrossSiteRedirects bool
	timeout                 string
	maxAttempts             int
	initialDelay            int
	maxDelay                int
	backoffFactor           float64
	jitter                  float64
}

type execFlags struct {
	workdir string
}

var log *logging.Logger

func main() {
	root := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "initium",
		Short:         "Swiss-army toolbox for Kubernetes initContainers",
		Long:          "Initium is a multi-tool CLI for Kubernetes initContainers.\nIt provides subcommands to wait for dependencies, run migrations,\nseed databases, render config templates, fetch secrets, and execute\narbitrary commands -- all with safe defaults, structured logging,\nand security guardrails.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvOverrides(cmd.Root().PersistentFlags(), map[string]string{
				"json": "INITIUM_JSON",
			}); err != nil {
				return err
			}
			log = logging.New(logging.Options{
				JSON:    root.json,
				LogFile: root.logFile,
				RunID:   uuid.NewString(),
			})
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVar(&root.json, "json", false, "Enable JSON log output")
	rootCmd.PersistentFlags().StringVar(&root.logFile, "log-file", "", "Additionally write logs to this rotating file")

	rootCmd.AddCommand(waitForCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(renderCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(execCmd())

	err := rootCmd.Execute()
	if err != nil {
		if log == nil {
			log = logging.New(logging.Options{})
		}
		log.Error(err.Error())
		os.Exit(1)
	}

	waitIfSidecar()
}

// applyEnvOverrides copies INITIUM_* environment values into any bound
// flag the user did not set explicitly. Explicit flags always win.
func applyEnvOverrides(flags *pflag.FlagSet, bindings map[string]string) error {
	v := viper.New()
	for flagName, envVar := range bindings {
		if err := v.BindEnv(flagName, envVar); err != nil {
			return fmt.Errorf("binding %s: %w", envVar, err)
		}
	}
	var firstErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if _, bound := bindings[f.Name]; !bound || f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := flags.Set(f.Name, v.GetString(f.Name)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("applying %s to --%s: %w", bindings[f.Name], f.Name, err)
		}
	})
	return firstErr
}

// waitIfSidecar blocks on SIGTERM/SIGINT after a successful run when
// INITIUM_SIDECAR is truthy, so the container can be reused as a
// long-lived sidecar instead of exiting immediately.
func waitIfSidecar() {
	v := viper.New()
	_ = v.BindEnv("sidecar", "INITIUM_SIDECAR")
	if !v.GetBool("sidecar") {
		return
	}
	log.Info("sidecar mode: waiting for termination signal")
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	sig := <-ch
	log.Info("received signal, exiting", "signal", sig.String())
}

func parseTimeoutFlag(name, raw string) (time.Duration, error) {
	d, err := duration.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

func retryConfig(maxAttempts, initialDelayMs, maxDelayMs int, backoffFactor, jitter float64) retry.Config {
	return retry.Config{
		MaxAttempts:    maxAttempts,
		InitialDelay:   time.Duration(initialDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(maxDelayMs) * time.Millisecond,
		BackoffFactor:  backoffFactor,
		JitterFraction: jitter,
	}
}

func waitForCmd() *cobra.Command {
	flags := &waitForFlags{}
	cmd := &cobra.Command{
		Use:   "wait-for",
		Short: "Wait for TCP or HTTP(S) endpoints to become available",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvOverrides(cmd.Flags(), map[string]string{
				"target":       "INITIUM_TARGET",
				"timeout":      "INITIUM_TIMEOUT",
				"insecure-tls": "INITIUM_INSECURE_TLS",
			}); err != nil {
				return err
			}
			return runWaitFor(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.targets, "target", nil, "Target endpoint (tcp://host:port or http(s)://...), repeatable")
	cmd.Flags().StringVar(&flags.timeout, "timeout", "300", "Overall timeout (seconds or duration string)")
	cmd.Flags().IntVar(&flags.maxAttempts, "max-attempts", 60, "Maximum retry attempts")
	cmd.Flags().IntVar(&flags.initialDelay, "initial-delay", 1000, "Initial delay in milliseconds")
	cmd.Flags().IntVar(&flags.maxDelay, "max-delay", 30000, "Maximum delay in milliseconds")
	cmd.Flags().Float64Var(&flags.backoffFactor, "backoff-factor", 2.0, "Backoff multiplier")
	cmd.Flags().Float64Var(&flags.jitter, "jitter", 0.1, "Jitter fraction (0.0-1.0)")
	cmd.Flags().IntVar(&flags.httpStatus, "http-status", 200, "Expected HTTP status code")
	cmd.Flags().BoolVar(&flags.insecureTLS, "insecure-tls", false, "Allow insecure TLS connections")

	return cmd
}

func runWaitFor(ctx context.Context, flags *waitForFlags) error {
	timeout, err := parseTimeoutFlag("timeout", flags.timeout)
	if err != nil {
		return err
	}
	return waitfor.Run(ctx, log, waitfor.Config{
		Targets:     flags.targets,
		Timeout:     timeout,
		HTTPStatus:  flags.httpStatus,
		InsecureTLS: flags.insecureTLS,
		Retry:       retryConfig(flags.maxAttempts, flags.initialDelay, flags.maxDelay, flags.backoffFactor, flags.jitter),
	})
}

func migrateCmd() *cobra.Command {
	flags := &migrateFlags{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply versioned database migrations once, guarded by a lock file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvOverrides(cmd.Flags(), map[string]string{
				"workdir": "INITIUM_WORKDIR",
			}); err != nil {
				return err
			}
			return runMigrate(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.driver, "driver", "postgres", "Database driver: sqlite, postgres, or mysql")
	cmd.Flags().StringVar(&flags.databaseURL, "database-url", "", "Database connection string (falls back to DATABASE_URL)")
	cmd.Flags().StringVar(&flags.urlEnv, "database-url-env", "", "Env var holding the connection string")
	cmd.Flags().StringVar(&flags.migrations, "migrations", "", "Directory holding versioned migration files")
	cmd.Flags().StringVar(&flags.workdir, "workdir", "/work", "Working directory")
	cmd.Flags().StringVar(&flags.lockFile, "lock-file", "", "Lock file for serializing concurrent runs, relative to workdir")
	cmd.Flags().StringVar(&flags.lockTimeout, "lock-timeout", "30s", "How long to wait for the lock")

	return cmd
}

func runMigrate(ctx context.Context, flags *migrateFlags) error {
	lockTimeout, err := parseTimeoutFlag("lock-timeout", flags.lockTimeout)
	if err != nil {
		return err
	}
	return migrate.Run(ctx, log, migrate.Config{
		Driver:        flags.driver,
		URL:           flags.databaseURL,
		URLEnv:        flags.urlEnv,
		MigrationsDir: flags.migrations,
		Workdir:       flags.workdir,
		LockFile:      flags.lockFile,
		LockTimeout:   lockTimeout,
	})
}

func seedCmd() *cobra.Command {
	flags := &seedFlags{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Apply declarative data seeds to a relational database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvOverrides(cmd.Flags(), map[string]string{
				"spec": "INITIUM_SPEC",
			}); err != nil {
				return err
			}
			return runSeed(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.spec, "spec", "", "Path to the seed spec file (YAML, JSON, or TOML)")
	cmd.Flags().BoolVar(&flags.reset, "reset", false, "Delete seeded rows and tracking marks, then re-seed")

	return cmd
}

func runSeed(ctx context.Context, flags *seedFlags) error {
	if flags.spec == "" {
		return fmt.Errorf("seed: --spec is required")
	}
	return seed.Run(ctx, log, flags.spec, flags.reset)
}

func renderCmd() *cobra.Command {
	flags := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render templates into config files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvOverrides(cmd.Flags(), map[string]string{
				"workdir": "INITIUM_WORKDIR",
			}); err != nil {
				return err
			}
			return runRender(flags)
		},
	}

	cmd.Flags().StringVar(&flags.template, "template", "", "Path to template file")
	cmd.Flags().StringVar(&flags.output, "output", "", "Output file path relative to workdir")
	cmd.Flags().StringVar(&flags.workdir, "workdir", "/work", "Working directory")
	cmd.Flags().StringVar(&flags.mode, "mode", "envsubst", "Template mode: envsubst or gotemplate")

	return cmd
}

func runRender(flags *renderFlags) error {
	if flags.template == "" {
		return fmt.Errorf("render: --template is required")
	}
	if flags.output == "" {
		return fmt.Errorf("render: --output is required")
	}
	if flags.mode != "envsubst" && flags.mode != "gotemplate" {
		return fmt.Errorf("render: --mode must be envsubst or gotemplate, got %q", flags.mode)
	}

	outPath, err := pathsafe.Resolve(flags.workdir, flags.output)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(flags.template)
	if err != nil {
		return fmt.Errorf("render: reading template %q: %w", flags.template, err)
	}

	log.Info("rendering template", "template", flags.template, "output", outPath, "mode", flags.mode)

	var result string
	if flags.mode == "envsubst" {
		result = render.Envsubst(string(data))
	} else {
		result, err = render.Render(string(data), envSnapshot())
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("render: creating output directory: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(result), 0o644); err != nil {
		return fmt.Errorf("render: writing output %q: %w", outPath, err)
	}
	log.Info("render completed", "output", outPath)
	return nil
}

// envSnapshot exposes the process environment as the "env" template
// context for gotemplate mode, matching the seed spec preprocessor.
func envSnapshot() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

func fetchCmd() *cobra.Command {
	flags := &fetchFlags{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch secrets or config from HTTP(S) endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvOverrides(cmd.Flags(), map[string]string{
				"workdir":      "INITIUM_WORKDIR",
				"timeout":      "INITIUM_TIMEOUT",
				"insecure-tls": "INITIUM_INSECURE_TLS",
			}); err != nil {
				return err
			}
			return runFetch(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.url, "url", "", "URL to fetch")
	cmd.Flags().StringVar(&flags.output, "output", "", "Output file path relative to workdir")
	cmd.Flags().StringVar(&flags.workdir, "workdir", "/work", "Working directory")
	cmd.Flags().StringVar(&flags.authEnv, "auth-env", "", "Env var containing the Authorization header value")
	cmd.Flags().BoolVar(&flags.insecureTLS, "insecure-tls", false, "Skip TLS verification")
	cmd.Flags().BoolVar(&flags.followRedirects, "follow-redirects", true, "Follow HTTP redirects")
	cmd.Flags().BoolVar(&flags.allowCrossSiteRedirects, "allow-cross-site-redirects", false, "Allow redirects that change host")
	cmd.Flags().StringVar(&flags.timeout, "timeout", "300", "Timeout (seconds or duration string)")
	cmd.Flags().IntVar(&flags.maxAttempts, "max-attempts", 3, "Max retry attempts")
	cmd.Flags().IntVar(&flags.initialDelay, "initial-delay", 1000, "Initial delay in ms")
	cmd.Flags().IntVar(&flags.maxDelay, "max-delay", 30000, "Max delay in ms")
	cmd.Flags().Float64Var(&flags.backoffFactor, "backoff-factor", 2.0, "Backoff factor")
	cmd.Flags().Float64Var(&flags.jitter, "jitter", 0.1, "Jitter fraction")

	return cmd
}

func runFetch(ctx context.Context, flags *fetchFlags) error {
	timeout, err := parseTimeoutFlag("timeout", flags.timeout)
	if err != nil {
		return err
	}
	return fetch.Run(ctx, log, fetch.Config{
		URL:                     flags.url,
		Output:                  flags.output,
		Workdir:                 flags.workdir,
		AuthEnv:                 flags.authEnv,
		InsecureTLS:             flags.insecureTLS,
		FollowRedirects:         flags.followRedirects,
		AllowCrossSiteRedirects: flags.allowCrossSiteRedirects,
		Timeout:                 timeout,
		Retry:                   retryConfig(flags.maxAttempts, flags.initialDelay, flags.maxDelay, flags.backoffFactor, flags.jitter),
	})
}

func execCmd() *cobra.Command {
	flags := &execFlags{}
	cmd := &cobra.Command{
		Use:   "exec -- <command> [args...]",
		Short: "Run arbitrary commands with structured logging",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyEnvOverrides(cmd.Flags(), map[string]string{
				"workdir": "INITIUM_WORKDIR",
			}); err != nil {
				return err
			}
			return runExec(cmd.Context(), flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.workdir, "workdir", "", "Working directory")
	cmd.Flags().SetInterspersed(false)

	return cmd
}

func runExec(ctx context.Context, flags *execFlags, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("exec: command is required after \"--\"")
	}
	log.Info("executing command", "command", args[0])
	code, err := proc.Run(ctx, log, args, flags.workdir)
	if err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("exec: command exited with code %d", code)
	}
	log.Info("command completed successfully")
	return nil
}
