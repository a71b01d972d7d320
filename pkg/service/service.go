package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xmhha/treewatch/pkg/config"
	"github.com/0xmhha/treewatch/pkg/hub"
	"github.com/0xmhha/treewatch/pkg/logger"
	"github.com/0xmhha/treewatch/pkg/notify"
	"github.com/0xmhha/treewatch/pkg/server"
	"github.com/0xmhha/treewatch/pkg/source"
	"github.com/0xmhha/treewatch/pkg/stats"
	"github.com/0xmhha/treewatch/pkg/tree"
)

// Service owns every component of a running instance.
type Service struct {
	cfg     *config.Config
	logger  logger.Logger
	started time.Time

	src    source.Source
	tree   *tree.Tree
	hub    *hub.Hub
	server *server.Server
	rec    stats.Recorder
	store  stats.Store // nil when persistence is disabled

	running     atomic.Bool
	releaseOnce sync.Once
	releaseErr  error
}

// New creates a service. It registers the initial watches, so every
// directory of the tree is watched when New returns.
func New(cfg *config.Config, log logger.Logger) (*Service, error) {
	if err := cfg.ValidateWatch(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	s := &Service{
		cfg:     cfg,
		logger:  log.Named("service"),
		started: time.Now(),
		rec: stats.NewRecorder(stats.Config{
			TrackPercentiles: cfg.Stats.TrackPercentiles,
			MaxDirectories:   cfg.Stats.MaxDirectories,
		}),
	}

	src, err := source.New(source.Config{
		Backend:    cfg.Watch.Backend,
		BufferSize: cfg.Watch.BufferSize,
	}, log)
	if err != nil {
		return nil, err
	}
	s.src = src

	if cfg.Stats.Enabled {
		store, err := stats.Open(stats.StoreConfig{DBPath: cfg.Stats.DBPath}, log)
		if err != nil {
			s.closeSource()
			return nil, err
		}
		s.store = store
		s.restore()
	}

	t, err := tree.New(tree.Config{
		Root: cfg.Watch.Root,
		Skip: cfg.Watch.Exclude,
	}, src, log)
	if err != nil {
		s.closeSource()
		if s.store != nil {
			s.closeStore()
		}
		return nil, err
	}
	s.tree = t

	s.hub = hub.New(log)
	s.server = server.New(server.Config{
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxMessageSize:  cfg.Server.MaxMessageSize,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, s.hub, func() interface{} { return s.Snapshot() }, log)

	s.logger.Info("service created",
		"root", t.Root(),
		"directories", t.Stats().Directories,
		"address", cfg.Server.Addr())

	return s, nil
}

// Run listens on the configured address and serves until ctx is done, the
// tree fails or the listener fails. Everything is released on return.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		if !s.running.Load() {
			_ = s.Close() // nolint:errcheck
		}
		return fmt.Errorf("%w on %s: %w", server.ErrListen, s.cfg.Server.Addr(), err)
	}
	return s.RunListener(ctx, ln)
}

// RunListener is Run on an open listener.
//
// Shutdown order: stop accepting connections, close the event source, wait
// for the tree, close the hub (which closes every session), then flush and
// close the statistics database.
func (s *Service) RunListener(ctx context.Context, ln net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		_ = ln.Close() // nolint:errcheck
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	treeDone := make(chan error, 1)
	go func() {
		treeDone <- s.tree.Run(ctx, s.publish)
	}()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- s.server.ServeListener(ctx, ln)
	}()

	var flushes sync.WaitGroup
	if s.store != nil {
		flushes.Add(1)
		go func() {
			defer flushes.Done()
			s.flushLoop(ctx)
		}()
	}

	var (
		runErr       error
		treeExited   bool
		serverExited bool
	)

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")

	case err := <-treeDone:
		treeExited = true
		if err == nil {
			err = ErrSourceStopped
		}
		s.logger.Error("watch tree stopped", "error", err)
		runErr = err

	case err := <-serverDone:
		serverExited = true
		if err != nil {
			s.logger.Error("server stopped", "error", err)
			runErr = err
		}
	}
	cancel()

	if !serverExited {
		if err := <-serverDone; err != nil && runErr == nil {
			runErr = err
		}
	}

	s.closeSource()

	if !treeExited {
		if err := <-treeDone; err != nil && runErr == nil {
			runErr = err
		}
	}

	s.hub.Close()

	flushes.Wait()
	if err := s.Close(); err != nil && runErr == nil {
		runErr = err
	}

	s.logger.Info("service stopped", "published", s.tree.Stats().Published)
	return runErr
}

// Close releases the source and the statistics database of a service that
// never ran. Run calls it itself.
func (s *Service) Close() error {
	s.releaseOnce.Do(func() {
		s.closeSource()
		if s.store == nil {
			return
		}
		if err := s.flush(); err != nil {
			s.releaseErr = err
		}
		if err := s.store.Close(); err != nil && s.releaseErr == nil {
			s.releaseErr = err
		}
	})
	return s.releaseErr
}

// Snapshot returns the current service state.
func (s *Service) Snapshot() Snapshot {
	return Snapshot{
		Root:        s.tree.Root(),
		StartedAt:   s.started,
		Events:      s.rec.Snapshot(),
		Tree:        s.tree.Stats(),
		Subscribers: s.hub.Count(),
		Delivered:   s.hub.Delivered(),
		Failed:      s.hub.Failed(),
	}
}

// publish is the tree's sink. The event is encoded once; the same bytes go
// to every matching subscriber.
func (s *Service) publish(ev notify.Event) {
	msg, err := ev.Encode()
	if err != nil {
		s.logger.Error("failed to encode event", "event", ev.String(), "error", err)
		return
	}

	s.rec.Record(ev, len(msg))
	s.hub.Send(msg, ev.Mask)
}

func (s *Service) restore() {
	saved, err := s.store.Load()
	switch {
	case err == nil:
		s.rec.Restore(saved)
		s.logger.Info("statistics restored",
			"events", saved.Events,
			"db_path", s.store.Path())
	case errors.Is(err, stats.ErrNoSnapshot):
		s.logger.Debug("no saved statistics", "db_path", s.store.Path())
	default:
		s.logger.Warn("failed to load saved statistics, starting from zero",
			"db_path", s.store.Path(),
			"error", err)
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Stats.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.flush(); err != nil {
				s.logger.Warn("failed to save statistics", "error", err)
			}
		}
	}
}

func (s *Service) flush() error {
	return s.store.Save(s.rec.Snapshot())
}

func (s *Service) closeSource() {
	if err := s.src.Close(); err != nil {
		s.logger.Warn("failed to close event source", "error", err)
	}
}

func (s *Service) closeStore() {
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close statistics database", "error", err)
	}
}
