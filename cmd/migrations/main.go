package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/classvote/api/internal/config"
	"github.com/classvote/api/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("a migration name is required.")
	}
	migrationName := os.Args[1]

	var cfg struct {
		Database config.DatabaseConfig
		Log      config.LogConfig
	}
	if err := config.LoadInto(&cfg); err != nil {
		log.Fatal(err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Sync()

	db, err := sqlx.Connect("postgres", cfg.Database.ConnString())
	if err != nil {
		l.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()

	basePath := filepath.Join(".", "internal", "adapters", "repository", "postgres", "migrations")
	fileName, err := migrationFilePath(basePath, migrationName)
	if err != nil {
		l.Fatal("find migration", zap.String("name", migrationName), zap.Error(err))
	}

	fileContent, err := os.ReadFile(filepath.Join(basePath, fileName))
	if err != nil {
		l.Fatal("read migration", zap.String("file", fileName), zap.Error(err))
	}

	if _, err := db.Exec(string(fileContent)); err != nil {
		l.Fatal("execute migration", zap.String("file", fileName), zap.Error(err))
	}

	l.Info("migration executed", zap.String("file", fileName))
}

// migrationFilePath matches names like "create_votes.up" or "000001_create_votes.down".
func migrationFilePath(basePath string, migrationName string) (string, error) {
	regex, err := regexp.Compile(fmt.Sprintf(`^.*%s\.sql$`, regexp.QuoteMeta(migrationName)))
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	files, err := os.ReadDir(basePath)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if regex.MatchString(f.Name()) {
			return f.Name(), nil
		}
	}

	return "", fmt.Errorf("migration file not found")
}
