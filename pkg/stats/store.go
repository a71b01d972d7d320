package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xmhha/treewatch/pkg/logger"
	bolt "go.etcd.io/bbolt"
)

// Bucket and key names.
var (
	bucketStats = []byte("stats")
	keySnapshot = []byte("snapshot")
)

// Store persists one statistics snapshot.
type Store interface {
	// Load returns the saved snapshot, or ErrNoSnapshot.
	Load() (Statistics, error)

	// Save replaces the saved snapshot.
	Save(s Statistics) error

	// Path returns the database file path.
	Path() string

	// Close releases the database.
	Close() error
}

// store implements the Store interface using bbolt.
type store struct {
	db     *bolt.DB
	path   string
	config StoreConfig
	logger logger.Logger
}

// Open opens or creates the statistics database.
func Open(cfg StoreConfig, log logger.Logger) (Store, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("failed to open statistics database: empty path")
	}

	dbPath := expandHome(cfg.DBPath)

	if !cfg.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout:  cfg.Timeout,
		ReadOnly: cfg.ReadOnly,
	})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrStoreLocked, dbPath)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if !cfg.ReadOnly {
		if err := db.Update(func(tx *bolt.Tx) error {
			if _, createErr := tx.CreateBucketIfNotExists(bucketStats); createErr != nil {
				return fmt.Errorf("failed to create stats bucket: %w", createErr)
			}
			return nil
		}); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("failed to close database after initialization error",
					"error", closeErr)
			}
			return nil, err
		}
	}

	log = log.Named("stats")
	log.Debug("statistics store opened", "db_path", dbPath, "read_only", cfg.ReadOnly)

	return &store{
		db:     db,
		path:   dbPath,
		config: cfg,
		logger: log,
	}, nil
}

// Load implements Store.Load.
func (s *store) Load() (Statistics, error) {
	var saved Statistics

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStats)
		if b == nil {
			return ErrNoSnapshot
		}

		data := b.Get(keySnapshot)
		if data == nil {
			return ErrNoSnapshot
		}

		if err := json.Unmarshal(data, &saved); err != nil {
			return fmt.Errorf("failed to unmarshal statistics: %w", err)
		}
		return nil
	})
	if err != nil {
		return Statistics{}, err
	}

	// Percentiles describe a window that did not survive the restart.
	saved.P50Size, saved.P95Size, saved.P99Size = 0, 0, 0
	if saved.Categories == nil {
		saved.Categories = make(map[string]uint64)
	}
	if saved.Directories == nil {
		saved.Directories = make(map[string]uint64)
	}
	return saved, nil
}

// Save implements Store.Save.
func (s *store) Save(st Statistics) error {
	if s.config.ReadOnly {
		return ErrReadOnly
	}

	st.P50Size, st.P95Size, st.P99Size = 0, 0, 0
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStats).Put(keySnapshot, data)
	}); err != nil {
		return fmt.Errorf("failed to save statistics: %w", err)
	}

	s.logger.Trace("statistics saved", "events", st.Events)
	return nil
}

// Path implements Store.Path.
func (s *store) Path() string {
	return s.path
}

// Close implements Store.Close.
func (s *store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// expandHome expands a leading ~ or ~/ to the user's home directory.
// ~name is left alone.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
