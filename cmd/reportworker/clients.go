package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/metrics"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/queue"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/storage"
)

func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		)))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

func createSQSClient(ctx context.Context) (*sqs.Client, error) {
	awsCfg, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	}), nil
}

func createQueueClient(ctx context.Context) (*queue.Client, error) {
	sqsClient, err := createSQSClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS client: %w", err)
	}
	return queue.NewClient(sqsClient, cfg.Queue.RetryMaxAttempts, logger), nil
}

// createRedisCache returns a queue URL cache, or nil when Redis is not
// configured. The resolver works without one.
func createRedisCache(ctx context.Context) (*storage.RedisCache, error) {
	if !cfg.RedisEnabled() {
		return nil, nil
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	cache := storage.NewRedisCache(redisClient, "reportworker")
	if err := cache.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return cache, nil
}

// createAuditStore returns the failure audit store, or nil when no database
// is configured.
func createAuditStore(ctx context.Context) (*storage.AuditStore, error) {
	if !cfg.DatabaseEnabled() {
		return nil, nil
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Database.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Database,
		)
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.Database,
		)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	store := storage.NewAuditStore(db, logger)
	if err := store.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func createMetricsProvider(ctx context.Context) (metrics.Provider, error) {
	factoryCfg := metrics.FactoryConfig{
		CloudWatch: metrics.CloudWatchConfig{
			Enabled:   cfg.Metrics.CloudWatch.Enabled,
			Namespace: cfg.Metrics.CloudWatch.Namespace,
		},
		Prometheus: metrics.PrometheusConfig{
			Enabled:   cfg.Metrics.Prometheus.Enabled,
			Namespace: cfg.Metrics.Prometheus.Namespace,
			Subsystem: cfg.Metrics.Prometheus.Subsystem,
		},
		Logger: logger,
	}

	if cfg.Metrics.CloudWatch.Enabled {
		awsCfg, err := loadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config for CloudWatch: %w", err)
		}
		factoryCfg.CloudWatchClient = cloudwatch.NewFromConfig(awsCfg)
	}

	return metrics.Build(factoryCfg), nil
}
