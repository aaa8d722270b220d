package app

import (
	"fmt"
	"os"
	"path/filepath"

	"curator/internal/config"
	"curator/internal/logger"
	"curator/internal/repository/sqlite"
	"curator/internal/service"
	"curator/internal/storage"
)

// App owns the long-lived collaborators of a curator process.
type App struct {
	config  *config.Config
	logger  *logger.Logger
	db      *sqlite.DB
	manager *service.Manager
}

// NewApp validates cfg and wires logger, store, database and manager.
func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &App{config: cfg, logger: log}

	var repos *service.Repositories
	if cfg.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			log.Close()
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			log.Close()
			return nil, err
		}
		a.db = db
		repos = &service.Repositories{
			Runs:    sqlite.NewRunRepository(db),
			Records: sqlite.NewRecordRepository(db),
			Issues:  sqlite.NewIssueRepository(db),
		}
	}

	a.manager = service.NewManager(cfg, storage.NewFileStore(), log, repos)
	log.Info("Curator ready: dataset=%s output=%s workers=%d", cfg.DatasetDirectory, cfg.OutputDirectory, cfg.Workers)
	return a, nil
}

// Manager returns the pipeline manager.
func (a *App) Manager() *service.Manager {
	return a.manager
}

// Config returns the validated configuration.
func (a *App) Config() *config.Config {
	return a.config
}

// Close releases the database and log files.
func (a *App) Close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
	}
	a.logger.Close()
	return err
}
