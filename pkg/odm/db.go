package odm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dmitrymomot/mongotenant/pkg/logger"
)

// DB is a model registry over a Driver. It is safe for concurrent use.
type DB struct {
	driver Driver
	logger *slog.Logger

	mu     sync.RWMutex
	models map[string]*model
	order  []string
}

// NewDB creates a connection over the driver.
func NewDB(driver Driver, opts ...DBOption) *DB {
	db := &DB{
		driver: driver,
		logger: slog.Default(),
		models: make(map[string]*model),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Register compiles schema into a model stored under name.
func (db *DB) Register(name string, schema *Schema, opts ...ModelOption) (Model, error) {
	if schema == nil {
		return nil, ErrNilSchema
	}
	cfg := modelConfig{collection: strings.ToLower(name) + "s"}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := newModel(name, schema, db, db.driver.Collection(cfg.collection))
	if err := db.add(name, m); err != nil {
		return nil, err
	}
	db.logger.Debug("model registered",
		logger.Component("odm"),
		logger.Model(name),
		slog.String("collection", cfg.collection),
	)
	return m, nil
}

func (db *DB) add(name string, m *model) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.models[name]; ok {
		return fmt.Errorf("%w: %s", ErrModelExists, name)
	}
	db.models[name] = m
	db.order = append(db.order, name)
	return nil
}

// Model returns the registered model. Discriminator models are registered
// under their own names.
func (db *DB) Model(name string) (Model, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	m, ok := db.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	return m, nil
}

// Collection opens a collection on the driver.
func (db *DB) Collection(name string) Collection {
	return db.driver.Collection(name)
}

// SyncIndexes creates the indexes declared by every registered schema.
// Failures are collected per model and returned joined.
func (db *DB) SyncIndexes(ctx context.Context) error {
	db.mu.RLock()
	models := make([]*model, 0, len(db.order))
	for _, name := range db.order {
		models = append(models, db.models[name])
	}
	db.mu.RUnlock()

	var errs []error
	for _, m := range models {
		indexes := m.schema.Indexes()
		if len(indexes) == 0 {
			continue
		}
		if err := m.coll.CreateIndexes(ctx, indexes); err != nil {
			db.logger.ErrorContext(ctx, "failed to create indexes",
				logger.Component("odm"),
				logger.Model(m.name),
				logger.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
			continue
		}
		db.logger.DebugContext(ctx, "indexes synced",
			logger.Component("odm"),
			logger.Model(m.name),
			slog.Int("count", len(indexes)),
		)
	}
	return errors.Join(errs...)
}
