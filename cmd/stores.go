package main

import (
	"context"
	"fmt"

	"compressor/internal/config"
	"compressor/internal/core/job"
	"compressor/internal/health"
	"compressor/internal/platform/artifacts"
	"compressor/internal/platform/mongodb"
	"compressor/internal/platform/postgres"
	rds "compressor/internal/platform/redis"
)

// openJobStore returns the configured job store with any extra health
// checks it brings and a close function.
func openJobStore(ctx context.Context, cfg config.Config, redisSvc *rds.Service) (job.Store, []health.Check, func(), error) {
	switch cfg.JobStore {
	case "postgres":
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return job.NewPostgresStore(pool), []health.Check{{Name: "postgres", Fn: pool.Ping}}, pool.Close, nil
	case "mongo":
		client, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		return job.NewMongoStore(client), []health.Check{{Name: "mongo", Fn: client.Ping}}, closeFn, nil
	default:
		return job.NewJobService(redisSvc), nil, func() {}, nil
	}
}

func openArtifactStore(ctx context.Context, cfg config.Config) (artifacts.Store, error) {
	switch cfg.ArtifactStore {
	case "supabase":
		return artifacts.NewSupabase(artifacts.SupabaseConfig{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.SupabaseBucket,
		})
	case "minio":
		return artifacts.NewMinio(ctx, artifacts.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Location:  cfg.MinioLocation,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return artifacts.NewLocal(cfg.DataDir)
	}
}
