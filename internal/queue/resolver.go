package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/config"
	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/contracts"
)

const resolverCacheTTL = 24 * 60 * 60 // queue URLs rarely change

// Resolver turns queue names into URLs for the operator CLI commands that
// take names instead of full URLs. Lookups go through an optional cache;
// queue creation is deliberately out of scope.
type Resolver struct {
	api    API
	cache  contracts.Cache
	logger zerolog.Logger
}

// NewResolver creates a queue name resolver. cache may be nil, in which case
// every lookup hits the provider.
func NewResolver(api API, cache contracts.Cache, logger zerolog.Logger) *Resolver {
	return &Resolver{
		api:    api,
		cache:  cache,
		logger: logger,
	}
}

// Resolve returns the URL for a queue name. Unknown queues are an error; this
// processor never provisions queues.
func (r *Resolver) Resolve(ctx context.Context, queueName string) (string, error) {
	if r.cache != nil {
		if url, err := r.cache.Get(ctx, "queue-url:"+queueName); err == nil && url != "" {
			return url, nil
		}
	}

	result, err := r.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve queue %s: %w", queueName, err)
	}
	url := aws.ToString(result.QueueUrl)

	if r.cache != nil {
		if err := r.cache.Set(ctx, "queue-url:"+queueName, url, resolverCacheTTL); err != nil {
			r.logger.Warn().Str("queue", queueName).Err(err).Msg("Failed to cache queue URL")
		}
	}
	return url, nil
}

// ResolveDLQ returns the URL of the dead-letter queue paired with queueName,
// following the name + "-dlq" convention
func (r *Resolver) ResolveDLQ(ctx context.Context, queueName string) (string, error) {
	return r.Resolve(ctx, queueName+config.DLQSuffix)
}
