package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/tgienger/taskboard/internal/association"
	"github.com/tgienger/taskboard/internal/config"
	"github.com/tgienger/taskboard/internal/coordinator"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/gateway"
	"github.com/tgienger/taskboard/internal/identity"
	"github.com/tgienger/taskboard/internal/notify"
	"github.com/tgienger/taskboard/internal/projection"
	"github.com/tgienger/taskboard/internal/repository"
)

// criteriaSetting is the settings key the board filter is saved under
const criteriaSetting = "board_filter"

// session is everything a command needs, wired once
type session struct {
	cfg    config.Config
	log    *slog.Logger
	db     *db.DB
	repo   *repository.Repository
	toasts *notify.Queue
	coord  *coordinator.Coordinator
	assoc  *association.Manager

	closers []io.Closer
}

// openSession loads the configuration, applies flag overrides and wires the
// store, the working set and the coordinator. Logs go to a file so the
// terminal stays free for the board.
func openSession(opts *RootOptions) (*session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.User != "" {
		cfg.User = opts.User
	}
	if opts.LogLevel != "" {
		if _, err := config.ParseLevel(opts.LogLevel); err != nil {
			return nil, err
		}
		cfg.LogLevel = opts.LogLevel
	}

	s := &session{cfg: cfg}

	logPath := cfg.LogFile
	if logPath == "" {
		dir, err := db.DataDir()
		if err != nil {
			return nil, err
		}
		logPath = filepath.Join(dir, "taskboard.log")
	}
	logFile, err := config.OpenLogFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	s.closers = append(s.closers, logFile)
	s.log = config.NewLogger(cfg.LogLevel, logFile)

	database, err := db.New(db.Options{Path: cfg.DB, FilesDir: cfg.FilesDir, FilesURL: cfg.FilesURL})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	s.closers = append(s.closers, database)
	s.db = database

	s.repo = repository.New()
	s.toasts = notify.NewQueue()
	notifier := notify.Multi{notify.Log{Logger: s.log}, s.toasts}
	store := gateway.NewStore(database, cfg.GatewayTimeout, s.log)
	s.coord = coordinator.New(s.repo, store, identity.Static(cfg.User), notifier, s.log)
	s.assoc = association.New(s.coord, notifier, s.log)

	s.log.Info("session opened", "db", cfg.DB, "user", cfg.User)
	return s, nil
}

// Close releases the database and the log file
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// savedCriteria returns the filter saved by the last run, or the default
// one when nothing usable is stored
func (s *session) savedCriteria(ctx context.Context) projection.Criteria {
	raw, err := s.db.GetSetting(ctx, criteriaSetting)
	if err != nil || raw == "" {
		return projection.DefaultCriteria()
	}
	var c projection.Criteria
	if err := json.Unmarshal([]byte(raw), &c); err != nil || c.Validate() != nil {
		s.log.Warn("ignoring saved filter", "value", raw)
		return projection.DefaultCriteria()
	}
	return c
}

func (s *session) saveCriteria(ctx context.Context, c projection.Criteria) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.SetSetting(ctx, criteriaSetting, string(raw))
}
