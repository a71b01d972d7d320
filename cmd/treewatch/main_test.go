package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/treewatch/pkg/config"
	"github.com/0xmhha/treewatch/pkg/display"
	"github.com/0xmhha/treewatch/pkg/hub"
	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/server"
	"github.com/0xmhha/treewatch/pkg/service"
	"github.com/0xmhha/treewatch/pkg/stats"
	"github.com/0xmhha/treewatch/pkg/tree"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		config.EnvConfig, config.EnvRoot, config.EnvExclude, config.EnvAddress,
		config.EnvPort, config.EnvBackend, config.EnvDB, config.EnvLogLevel,
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "treewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// captureStdout redirects command output for the duration of the test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	saved := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = saved })
	return &buf
}

func TestRunRouting(t *testing.T) {
	out := captureStdout(t)

	require.NoError(t, run([]string{"-version"}))
	assert.Equal(t, "treewatch dev\n", out.String())

	out.Reset()
	require.NoError(t, run(nil))
	assert.Contains(t, out.String(), "Usage:")

	out.Reset()
	require.NoError(t, run([]string{"help"}))
	assert.Contains(t, out.String(), "tail")

	assert.ErrorIs(t, run([]string{"bogus"}), errUnknownCommand)
	assert.Error(t, run([]string{"-nosuchflag"}))
}

func TestParseServeCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    serveCommand
		wantErr bool
	}{
		{
			name: "no flags",
			args: []string{},
			want: serveCommand{configPath: "/test/config.yaml"},
		},
		{
			name: "all flags",
			args: []string{
				"-m", "/srv", "-a", "127.0.0.1", "-p", "9000",
				"-x", "@eaDir", "-x", "#recycle", "-l", "DEBUG",
				"-backend", "fsnotify", "-db", "/tmp/s.db", "-no-stats",
			},
			want: serveCommand{
				configPath: "/test/config.yaml",
				root:       "/srv",
				address:    "127.0.0.1",
				port:       9000,
				exclude:    []string{"@eaDir", "#recycle"},
				logLevel:   "debug",
				backend:    "fsnotify",
				dbPath:     "/tmp/s.db",
				noStats:    true,
			},
		},
		{
			name:    "invalid port",
			args:    []string{"-p", "http"},
			wantErr: true,
		},
		{
			name:    "stray argument",
			args:    []string{"-m", "/srv", "extra"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := parseServeCommand("/test/config.yaml", tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cmd)
		})
	}
}

func TestServeApply(t *testing.T) {
	cfg := config.Default()
	(&serveCommand{}).apply(cfg)
	assert.Equal(t, config.Default(), cfg, "empty flags changed the configuration")

	(&serveCommand{
		root:     "/srv",
		address:  "::1",
		port:     9001,
		exclude:  []string{".git"},
		logLevel: "trace",
		backend:  "fsnotify",
		dbPath:   "/tmp/x.db",
		noStats:  true,
	}).apply(cfg)

	assert.Equal(t, "/srv", cfg.Watch.Root)
	assert.Equal(t, "[::1]:9001", cfg.Server.Addr())
	assert.Equal(t, []string{".git"}, cfg.Watch.Exclude)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "fsnotify", cfg.Watch.Backend)
	assert.Equal(t, "/tmp/x.db", cfg.Stats.DBPath)
	assert.False(t, cfg.Stats.Enabled)
}

func TestServeLoadConfig(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "watch:\n  exclude: [\"@eaDir\"]\nserver:\n  port: 7000\n")

	_, err := (&serveCommand{configPath: path}).loadConfig()
	assert.ErrorIs(t, err, config.ErrNoRoot)

	cfg, err := (&serveCommand{configPath: path, root: "/srv", port: 7100}).loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv", cfg.Watch.Root)
	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, []string{"@eaDir"}, cfg.Watch.Exclude)

	_, err = (&serveCommand{configPath: path, root: "/srv", backend: "kqueue"}).loadConfig()
	assert.ErrorIs(t, err, config.ErrInvalidBackend)
}

func TestTailFormat(t *testing.T) {
	tests := []struct {
		name     string
		terminal bool
		want     display.Format
		wantErr  bool
	}{
		{"", true, display.FormatTable, false},
		{"", false, display.FormatJSON, false},
		{"text", false, display.FormatTable, false},
		{"JSON", true, display.FormatJSON, false},
		{"xml", true, "", true},
	}

	for _, tt := range tests {
		got, err := tailFormat(tt.name, tt.terminal)
		if tt.wantErr {
			assert.Error(t, err, "format %q", tt.name)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "format %q terminal=%v", tt.name, tt.terminal)
	}
}

func TestParseTailCommand(t *testing.T) {
	cmd, err := parseTailCommand([]string{"-url", "ws://host:1/", "-mask", "create,delete", "-format", "json"})
	require.NoError(t, err)
	assert.Equal(t, "ws://host:1/", cmd.url)
	assert.Equal(t, notify.Create|notify.Delete, cmd.mask)
	assert.Equal(t, display.FormatJSON, cmd.format)

	cmd, err = parseTailCommand([]string{"-mask", "0x300"})
	require.NoError(t, err)
	assert.Equal(t, defaultServerURL, cmd.url)
	assert.Equal(t, notify.Create|notify.Delete, cmd.mask)

	_, err = parseTailCommand([]string{"-mask", "nonsense"})
	assert.ErrorIs(t, err, notify.ErrUnknownCategory)
}

func startHub(t *testing.T) (*hub.Hub, string) {
	t.Helper()

	h := hub.New(logger.Noop())
	srv := httptest.NewServer(server.New(server.Config{}, h, nil, logger.Noop()).Handler())
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
}

func TestTailPrintsEvents(t *testing.T) {
	h, url := startHub(t)

	var out syncBuffer
	cmd := &tailCommand{url: url, mask: notify.Create, format: display.FormatJSON, out: &out}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cmd.run(ctx, logger.Noop())
	}()

	created, err := notify.Event{Path: "a", Name: "f", Mask: notify.Create}.Encode()
	require.NoError(t, err)
	deleted, err := notify.Event{Path: "a", Name: "f", Mask: notify.Delete}.Encode()
	require.NoError(t, err)

	// Publish until the subscription is in effect.
	require.Eventually(t, func() bool {
		h.Send(deleted, notify.Delete)
		h.Send(created, notify.Create)
		return strings.Contains(out.String(), `"name":"f"`)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tail did not stop on cancel")
	}

	assert.NotContains(t, out.String(), `"mask":512`, "unsubscribed category printed")
}

func TestTailServerClose(t *testing.T) {
	h, url := startHub(t)

	cmd := &tailCommand{url: url, mask: notify.Everything, format: display.FormatTable, out: &syncBuffer{}}

	done := make(chan error, 1)
	go func() {
		done <- cmd.run(context.Background(), logger.Noop())
	}()

	require.Eventually(t, func() bool { return h.Count() == 1 }, 5*time.Second, 5*time.Millisecond)
	h.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tail did not stop when the server closed")
	}
}

func TestTailDialFailure(t *testing.T) {
	cmd := &tailCommand{url: "ws://127.0.0.1:1/", mask: notify.Everything, out: &syncBuffer{}}
	assert.Error(t, cmd.run(context.Background(), logger.Noop()))
}

func TestParseStatsCommand(t *testing.T) {
	cmd, err := parseStatsCommand("/c.yaml", []string{"-live", "http://h:1", "-format", "simple", "-top", "3", "-compact"})
	require.NoError(t, err)
	assert.Equal(t, "http://h:1", cmd.live)
	assert.Equal(t, "simple", cmd.format)
	assert.Equal(t, 3, cmd.topN)
	assert.True(t, cmd.compact)

	_, err = parseStatsCommand("", []string{"-format", "yaml"})
	assert.Error(t, err)
}

func TestStatsSaved(t *testing.T) {
	clearEnv(t)

	dbPath := filepath.Join(t.TempDir(), "stats.db")
	st, err := stats.Open(stats.StoreConfig{DBPath: dbPath}, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, st.Save(stats.Statistics{
		Events:      3,
		Bytes:       300,
		Categories:  map[string]uint64{"IN_CREATE": 3},
		Directories: map[string]uint64{"docs": 2, ".": 1},
	}))
	require.NoError(t, st.Close())

	var out bytes.Buffer
	cmd := &statsCommand{
		configPath: writeConfig(t, "stats:\n  db_path: "+dbPath+"\n"),
		format:     "simple",
		topN:       1,
		out:        &out,
	}
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Events: 3")
	assert.Contains(t, out.String(), "CREATE=3")
	assert.Contains(t, out.String(), "#1: docs - 2 events")
	assert.NotContains(t, out.String(), "#2")
}

func TestStatsNothingSaved(t *testing.T) {
	clearEnv(t)

	var out bytes.Buffer
	cmd := &statsCommand{
		configPath: writeConfig(t, "stats:\n  db_path: "+filepath.Join(t.TempDir(), "none.db")+"\n"),
		format:     "table",
		out:        &out,
	}
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "No statistics saved yet")
}

func TestStatsLive(t *testing.T) {
	snap := service.Snapshot{
		Root:        "/srv",
		Events:      stats.Statistics{Events: 12, Directories: map[string]uint64{"x": 12}},
		Tree:        tree.Stats{Directories: 5},
		Subscribers: 2,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(snap)
	}))
	defer srv.Close()

	var out bytes.Buffer
	cmd := &statsCommand{live: srv.URL + "/", format: "json", compact: true, out: &out}
	require.NoError(t, cmd.Execute())

	var got service.Snapshot
	require.NoError(t, json.NewDecoder(&out).Decode(&got))
	assert.Equal(t, "/srv", got.Root)
	assert.Equal(t, 5, got.Tree.Directories)
	assert.Equal(t, uint64(12), got.Events.Events)
}

func TestStatsLiveFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cmd := &statsCommand{live: srv.URL, format: "table", out: &bytes.Buffer{}}
	assert.Error(t, cmd.Execute())
}

func TestConfigInitAndShow(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "conf", "treewatch.yaml")

	var out bytes.Buffer
	cmd := &configCommand{out: &out}
	require.NoError(t, cmd.Execute([]string{"init", "-output", path, "-m", "/srv/share"}))
	assert.Contains(t, out.String(), path)

	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/share", loaded.Watch.Root)

	// Existing file, declined.
	out.Reset()
	cmd = &configCommand{out: &out, in: strings.NewReader("n\n")}
	require.NoError(t, cmd.Execute([]string{"init", "-output", path}))
	assert.Contains(t, out.String(), "cancelled")

	loaded, err = config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/share", loaded.Watch.Root, "declined init overwrote the file")

	// Existing file, confirmed.
	out.Reset()
	cmd = &configCommand{out: &out, in: strings.NewReader("yes\n")}
	require.NoError(t, cmd.Execute([]string{"init", "-output", path}))

	loaded, err = config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Watch.Root)

	// Show reads the named file.
	out.Reset()
	cmd = &configCommand{configPath: path, out: &out}
	require.NoError(t, cmd.Execute([]string{"show"}))
	assert.Contains(t, out.String(), "# Source: "+path)
	assert.Contains(t, out.String(), "port: 8080")

	out.Reset()
	require.NoError(t, cmd.Execute([]string{"show", "-format", "json"}))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Contains(t, decoded, "Server")

	assert.Error(t, cmd.Execute([]string{"show", "-format", "toml"}))
}

func TestConfigPathAndHelp(t *testing.T) {
	clearEnv(t)

	var out bytes.Buffer
	cmd := &configCommand{out: &out}

	require.NoError(t, cmd.Execute([]string{"path"}))
	assert.Contains(t, out.String(), "./treewatch.yaml")
	assert.Contains(t, out.String(), config.DefaultPath())

	out.Reset()
	require.NoError(t, cmd.Execute(nil))
	assert.Contains(t, out.String(), "Subcommands:")

	err := cmd.Execute([]string{"reset"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, errUnknownCommand))
}
