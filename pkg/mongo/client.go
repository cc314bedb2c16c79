package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/mongotenant/pkg/logger"
)

// ClientOptions builds driver options from cfg. Nested documents decode as
// bson.M so stored values match what models and hooks work with.
func ClientOptions(cfg Config) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.ConnectionURL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetRetryWrites(cfg.RetryWrites).
		SetRetryReads(cfg.RetryReads).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
}

// New creates a mongo client, retrying up to cfg.RetryAttempts times.
// It returns ErrFailedToConnectToMongo joined with the last failure.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*mongo.Client, error) {
	if log == nil {
		log = slog.Default()
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		client, err := mongo.Connect(ClientOptions(cfg))
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				return client, nil
			}
			_ = client.Disconnect(ctx)
		}
		lastErr = err
		log.WarnContext(ctx, "mongo connection attempt failed",
			logger.Component("mongo"),
			slog.Int("attempt", attempt+1),
			logger.Error(err),
		)
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToConnectToMongo, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, errors.Join(ErrFailedToConnectToMongo, lastErr)
}

// Open connects and returns a Driver over cfg.Database.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Driver, *mongo.Client, error) {
	client, err := New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return NewDriver(client.Database(cfg.Database)), client, nil
}
