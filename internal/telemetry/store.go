package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/animctl/internal/errors"
	"codeberg.org/mutker/animctl/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type store struct {
	db            *sql.DB
	cfg           Config
	mu            sync.Mutex
	buffer        []*Snapshot
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewStore(cfg Config) (Store, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	// WAL keeps readers from blocking the flush transaction
	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	logger.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Int("batch_timeout", cfg.BatchTimeout).
		Msg("Telemetry store initialized")

	s := &store{
		db:            db,
		cfg:           cfg,
		buffer:        make([]*Snapshot, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	if cfg.BatchSize > 0 && cfg.BatchTimeout > 0 {
		s.flushTicker = time.NewTicker(time.Duration(cfg.BatchTimeout) * time.Second)
		go s.flusher()
	} else {
		close(s.flushDoneChan)
	}

	return s, nil
}

func (s *store) Record(snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, snapshot)

	if len(s.buffer) >= s.cfg.BatchSize {
		return s.flush()
	}

	return nil
}

func (s *store) Close() error {
	close(s.shutdownChan)

	if s.flushTicker != nil {
		s.flushTicker.Stop()
	}

	// Wait for the flusher to finish its final flush
	<-s.flushDoneChan

	if s.flushTicker == nil {
		s.mu.Lock()
		s.flush()
		s.mu.Unlock()
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := s.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	logger.Info().Msg("Telemetry store closed gracefully")

	return nil
}

func (s *store) flusher() {
	defer close(s.flushDoneChan)

	for {
		select {
		case <-s.flushTicker.C:
			s.mu.Lock()
			s.flush()
			s.mu.Unlock()
		case <-s.shutdownChan:
			s.mu.Lock()
			s.flush()
			s.mu.Unlock()
			return
		}
	}
}

// flush writes the buffer in one transaction. Caller holds s.mu.
func (s *store) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := s.db.Begin()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSnapshotSQL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, snapshot := range s.buffer {
		values := []interface{}{
			snapshot.Timestamp.Unix(),
			snapshot.InstanceID,
			snapshot.Mode,
			snapshot.AvgFPS,
			snapshot.MinFPS,
			snapshot.MaxFPS,
			snapshot.FrameTimeVariance,
			int64(snapshot.FrameDrops),
			snapshot.MemoryMB,
			snapshot.ComplianceScore,
			int64(snapshot.AlertCount),
		}

		if _, err := stmt.Exec(values...); err != nil {
			logger.Error().Err(err).Msg("Failed to execute insert")
			if err := tx.Rollback(); err != nil {
				logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	logger.Debug().Int("records", len(s.buffer)).Msg("Flushed telemetry to database")
	s.buffer = s.buffer[:0]

	return nil
}
