package config

import (
	"context"
	"fmt"

	"github.com/marmos91/docftp/internal/logger"
	"github.com/marmos91/docftp/pkg/backend"
	"github.com/marmos91/docftp/pkg/backend/badger"
	"github.com/marmos91/docftp/pkg/backend/memory"
	"github.com/marmos91/docftp/pkg/backend/mongo"
	"github.com/marmos91/docftp/pkg/backend/s3"
	"github.com/mitchellh/mapstructure"
)

// CreateBackend creates a document backend based on configuration.
//
// This factory function uses the Type field to determine which implementation
// to create, then decodes the type-specific configuration from the
// corresponding map and passes it to the backend's constructor.
//
// Supported types:
//   - "memory": pkg/backend/memory (ephemeral, users from config)
//   - "badger": pkg/backend/badger (persistent, users from config)
//   - "s3": pkg/backend/s3 (buckets as databases, access keys as credentials)
//   - "mongo": pkg/backend/mongo (MongoDB users as credentials)
//
// Returns:
//   - backend.Backend: Initialized backend
//   - error: Configuration or initialization error
func CreateBackend(ctx context.Context, cfg *BackendConfig) (backend.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return createMemoryBackend(cfg.Memory, cfg.Users)
	case "badger":
		return createBadgerBackend(ctx, cfg.Badger, cfg.Users)
	case "s3":
		return createS3Backend(ctx, cfg.S3)
	case "mongo":
		return createMongoBackend(ctx, cfg.Mongo)
	default:
		return nil, fmt.Errorf("unknown backend type: %q (supported: memory, badger, s3, mongo)", cfg.Type)
	}
}

// decodeOptions decodes a type-specific map, accepting durations as strings
// ("10s") and rejecting unknown keys.
func decodeOptions(kind string, options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("failed to decode %s backend options: %w", kind, err)
	}
	return nil
}

// createMemoryBackend creates an in-memory backend.
func createMemoryBackend(options map[string]any, users []backend.User) (backend.Backend, error) {
	type MemoryBackendOptions struct {
		MaxDocumentSize int64 `mapstructure:"max_document_size"`
	}

	var opts MemoryBackendOptions
	if err := decodeOptions("memory", options, &opts); err != nil {
		return nil, err
	}

	warnIfNoUsers("memory", users)

	b, err := memory.NewMemoryBackend(memory.MemoryBackendConfig{
		Users:           users,
		MaxDocumentSize: opts.MaxDocumentSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory backend: %w", err)
	}
	return b, nil
}

// createBadgerBackend creates a BadgerDB-based persistent backend.
func createBadgerBackend(ctx context.Context, options map[string]any, users []backend.User) (backend.Backend, error) {
	var storeCfg badger.BadgerBackendConfig
	if err := decodeOptions("badger", options, &storeCfg); err != nil {
		return nil, err
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger backend: db_path is required")
	}

	warnIfNoUsers("badger", users)
	storeCfg.Users = users

	b, err := badger.NewBadgerBackend(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger backend: %w", err)
	}

	logger.Info("Badger backend initialized: path=%s in_memory=%v", storeCfg.DBPath, storeCfg.InMemory)
	return b, nil
}

// createS3Backend creates an S3-based backend.
func createS3Backend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	var storeCfg s3.S3BackendConfig
	if err := decodeOptions("s3", options, &storeCfg); err != nil {
		return nil, err
	}

	if storeCfg.Region == "" {
		return nil, fmt.Errorf("s3 backend: region is required")
	}

	b, err := s3.NewS3Backend(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 backend: %w", err)
	}

	logger.Info("S3 backend initialized: region=%s endpoint=%q", storeCfg.Region, storeCfg.Endpoint)
	return b, nil
}

// createMongoBackend creates a MongoDB backend.
func createMongoBackend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	var storeCfg mongo.MongoBackendConfig
	if err := decodeOptions("mongo", options, &storeCfg); err != nil {
		return nil, err
	}

	if storeCfg.URI == "" {
		return nil, fmt.Errorf("mongo backend: uri is required")
	}

	b, err := mongo.NewMongoBackend(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo backend: %w", err)
	}

	logger.Info("MongoDB backend initialized: uri=%s", storeCfg.URI)
	return b, nil
}

func warnIfNoUsers(kind string, users []backend.User) {
	if len(users) == 0 {
		logger.Warn("%s backend has no users configured: every login will be rejected", kind)
	}
}
