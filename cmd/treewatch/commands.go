package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/0xmhha/treewatch/pkg/client"
	"github.com/0xmhha/treewatch/pkg/config"
	"github.com/0xmhha/treewatch/pkg/display"
	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/service"
	"github.com/0xmhha/treewatch/pkg/stats"
)

const (
	defaultServerURL = "ws://localhost:8080/"
	liveTimeout      = 5 * time.Second
)

// signalContext returns a context cancelled by SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config) logger.Logger {
	return logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// serveCommand watches a tree and serves subscribers.
type serveCommand struct {
	configPath string
	root       string
	address    string
	port       int
	exclude    []string
	logLevel   string
	backend    string
	dbPath     string
	noStats    bool
}

// parseServeCommand parses serve flags.
func parseServeCommand(configPath string, args []string) (*serveCommand, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	root := fs.String("m", "", "directory to monitor")
	address := fs.String("a", "", "TCP address of the listening interface")
	port := fs.Int("p", 0, "port to listen on")
	var exclude stringList
	fs.Var(&exclude, "x", "directory pattern to exclude (repeatable)")
	logLevel := fs.String("l", "", "log level (trace, debug, info, warn, error)")
	backend := fs.String("backend", "", "event source backend (inotify, fsnotify)")
	dbPath := fs.String("db", "", "statistics database path")
	noStats := fs.Bool("no-stats", false, "do not persist statistics")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	return &serveCommand{
		configPath: configPath,
		root:       *root,
		address:    *address,
		port:       *port,
		exclude:    exclude,
		logLevel:   strings.ToLower(*logLevel),
		backend:    strings.ToLower(*backend),
		dbPath:     *dbPath,
		noStats:    *noStats,
	}, nil
}

// Execute runs the serve command.
func (c *serveCommand) Execute() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg)

	svc, err := service.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	return svc.Run(ctx)
}

// loadConfig loads configuration and applies the command's flags.
func (c *serveCommand) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(c.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	c.apply(cfg)

	if err := cfg.ValidateWatch(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// apply overrides configuration with the flags that were given.
func (c *serveCommand) apply(cfg *config.Config) {
	if c.root != "" {
		cfg.Watch.Root = c.root
	}
	if c.address != "" {
		cfg.Server.Address = c.address
	}
	if c.port != 0 {
		cfg.Server.Port = c.port
	}
	if len(c.exclude) > 0 {
		cfg.Watch.Exclude = c.exclude
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.backend != "" {
		cfg.Watch.Backend = c.backend
	}
	if c.dbPath != "" {
		cfg.Stats.DBPath = c.dbPath
	}
	if c.noStats {
		cfg.Stats.Enabled = false
	}
}

// tailCommand prints events received from a server.
type tailCommand struct {
	url    string
	mask   notify.Mask
	format display.Format
	out    io.Writer
}

// parseTailCommand parses tail flags.
func parseTailCommand(args []string) (*tailCommand, error) {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	url := fs.String("url", defaultServerURL, "server URL")
	maskSpec := fs.String("mask", "all", "categories to receive (names or a number)")
	format := fs.String("format", "", "output format (text, json)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	mask, err := notify.ParseMask(*maskSpec)
	if err != nil {
		return nil, err
	}

	f, err := tailFormat(*format, term.IsTerminal(int(os.Stdout.Fd())))
	if err != nil {
		return nil, err
	}

	return &tailCommand{
		url:    *url,
		mask:   mask,
		format: f,
		out:    stdout,
	}, nil
}

// tailFormat resolves the -format flag. Without one, terminals get text and
// pipes get JSON lines.
func tailFormat(name string, terminal bool) (display.Format, error) {
	switch strings.ToLower(name) {
	case "":
		if terminal {
			return display.FormatTable, nil
		}
		return display.FormatJSON, nil
	case "text":
		return display.FormatTable, nil
	case "json":
		return display.FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid tail format %q: must be text or json", name)
	}
}

// Execute runs the tail command until interrupted.
func (c *tailCommand) Execute() error {
	ctx, stop := signalContext()
	defer stop()

	return c.run(ctx, logger.Default())
}

func (c *tailCommand) run(ctx context.Context, log logger.Logger) error {
	cl, err := client.Dial(ctx, c.url, log)
	if err != nil {
		return err
	}
	defer cl.Close()

	if err := cl.Subscribe(c.mask); err != nil {
		return err
	}

	formatter := display.New(display.Config{Format: c.format, Compact: true})
	for {
		ev, err := cl.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, client.ErrClosed):
			log.Info("server closed the connection")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}

		if err := formatter.FormatEvent(c.out, ev); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
}

// statsCommand displays saved or live statistics.
type statsCommand struct {
	configPath string
	live       string
	format     string
	topN       int
	compact    bool
	out        io.Writer
}

// parseStatsCommand parses stats flags.
func parseStatsCommand(configPath string, args []string) (*statsCommand, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	live := fs.String("live", "", "query a running server (e.g. http://localhost:8080)")
	format := fs.String("format", "table", "output format (table, json, simple)")
	topN := fs.Int("top", 0, "show the top N directories by events")
	compact := fs.Bool("compact", false, "compact output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if !display.ValidFormat(*format) {
		return nil, fmt.Errorf("invalid format %q: must be table, json, or simple", *format)
	}

	return &statsCommand{
		configPath: configPath,
		live:       *live,
		format:     *format,
		topN:       *topN,
		compact:    *compact,
		out:        stdout,
	}, nil
}

// Execute runs the stats command.
func (c *statsCommand) Execute() error {
	formatter := display.New(display.Config{
		Format:          display.Format(c.format),
		ShowPercentiles: c.live != "",
		ShowTimestamps:  true,
		Compact:         c.compact,
	})

	if c.live != "" {
		return c.showLive(formatter)
	}
	return c.showSaved(formatter)
}

// showLive queries /stats of a running server.
func (c *statsCommand) showLive(formatter display.Formatter) error {
	snap, err := fetchSnapshot(c.live)
	if err != nil {
		return err
	}

	if err := formatter.FormatSnapshot(c.out, snap); err != nil {
		return err
	}
	return c.showTop(formatter, snap.Events)
}

// showSaved reads the statistics database.
func (c *statsCommand) showSaved(formatter display.Formatter) error {
	cfg, err := config.NewLoader(c.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, err := os.Stat(cfg.Stats.DBPath); os.IsNotExist(err) {
		fmt.Fprintln(c.out, "No statistics saved yet")
		return nil
	}

	store, err := stats.Open(stats.StoreConfig{
		DBPath:   cfg.Stats.DBPath,
		ReadOnly: true,
	}, logger.Noop())
	if err != nil {
		if errors.Is(err, stats.ErrStoreLocked) {
			return fmt.Errorf("%w; query the running server with -live", err)
		}
		return err
	}
	defer store.Close()

	saved, err := store.Load()
	if errors.Is(err, stats.ErrNoSnapshot) {
		fmt.Fprintln(c.out, "No statistics saved yet")
		return nil
	}
	if err != nil {
		return err
	}

	if err := formatter.FormatStats(c.out, saved); err != nil {
		return err
	}
	return c.showTop(formatter, saved)
}

func (c *statsCommand) showTop(formatter display.Formatter, s stats.Statistics) error {
	if c.topN <= 0 {
		return nil
	}
	return formatter.FormatTopDirectories(c.out, s.Top(c.topN))
}

// fetchSnapshot GETs the /stats document of the server at base.
func fetchSnapshot(base string) (service.Snapshot, error) {
	var snap service.Snapshot

	url := strings.TrimSuffix(base, "/") + "/stats"
	httpClient := &http.Client{Timeout: liveTimeout}

	resp, err := httpClient.Get(url) // nolint:noctx
	if err != nil {
		return snap, fmt.Errorf("failed to query %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("failed to query %s: %s", url, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("failed to decode statistics: %w", err)
	}
	return snap, nil
}
