package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/borelli28/SIEM/config"
	"github.com/borelli28/SIEM/storage"

	"go.uber.org/zap"
)

// StorageComponents holds the SQLite handle and the per-entity stores built
// on top of it.
type StorageComponents struct {
	SQLite         *storage.SQLite
	LogStorage     *storage.SQLiteLogStorage
	AlertStorage   *storage.SQLiteAlertStorage
	CaseStorage    *storage.SQLiteCaseStorage
	CommentStorage *storage.SQLiteCommentStorage
	HostStorage    *storage.SQLiteHostStorage
	RuleStorage    *storage.SQLiteRuleStorage
}

// EnsureDataDirectories creates the data and rules directories if missing.
func EnsureDataDirectories(cfg *config.Config, sugar *zap.SugaredLogger) error {
	for _, dir := range []string{cfg.GetDataDir(), cfg.GetRulesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	dbDir := filepath.Dir(cfg.GetSQLitePath())
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
	}

	sugar.Infow("Data directories ready", "data_dir", cfg.GetDataDir())
	return nil
}

// InitStorage opens SQLite and builds every entity store, each migrating
// its own schema.
func InitStorage(cfg *config.Config, sugar *zap.SugaredLogger) (*StorageComponents, error) {
	sqlite, err := storage.NewSQLite(cfg.GetSQLitePath(), sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	logStorage, err := storage.NewSQLiteLogStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("failed to initialize log storage: %w", err)
	}

	alertStorage, err := storage.NewSQLiteAlertStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("failed to initialize alert storage: %w", err)
	}

	caseStorage, err := storage.NewSQLiteCaseStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("failed to initialize case storage: %w", err)
	}

	commentStorage, err := storage.NewSQLiteCommentStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("failed to initialize comment storage: %w", err)
	}

	hostStorage, err := storage.NewSQLiteHostStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("failed to initialize host storage: %w", err)
	}

	ruleStorage, err := storage.NewSQLiteRuleStorage(sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("failed to initialize rule storage: %w", err)
	}

	sugar.Info("Storage initialized successfully")

	return &StorageComponents{
		SQLite:         sqlite,
		LogStorage:     logStorage,
		AlertStorage:   alertStorage,
		CaseStorage:    caseStorage,
		CommentStorage: commentStorage,
		HostStorage:    hostStorage,
		RuleStorage:    ruleStorage,
	}, nil
}
