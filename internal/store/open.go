package store

import (
	"context"
	"fmt"
	"log"

	"github.com/unclebandit/newsflow/internal/config"
	"github.com/unclebandit/newsflow/internal/db"
)

// Open builds the backend selected by cfg.Type.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case config.StorageMemory:
		log.Println("⚠️ Using in-memory storage, data is lost on restart")
		return NewMemoryBackend(), nil
	case config.StorageFile:
		log.Println("📁 Data directory:", cfg.DataDir)
		return NewFileBackend(cfg.DataDir)
	case config.StorageS3:
		return NewS3Backend(ctx, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region)
	case config.StorageRedis:
		return NewRedisBackend(ctx, cfg.RedisURL)
	case config.StorageMongo:
		return NewMongoBackend(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	case config.StoragePostgres, config.StorageSQLite:
		driver := db.DriverPostgres
		if cfg.Type == config.StorageSQLite {
			driver = db.DriverSQLite
		}
		conn, err := db.Open(driver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		backend, err := NewSQLBackend(ctx, conn, driver)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
