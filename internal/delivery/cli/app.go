package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/config"
	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/firestoredb"
	"github.com/catalogsync/backend/internal/infrastructure/memstore"
	"github.com/catalogsync/backend/internal/infrastructure/rules"
	"github.com/catalogsync/backend/internal/infrastructure/shardfile"
	"github.com/catalogsync/backend/internal/infrastructure/sqlitestore"
	"github.com/catalogsync/backend/internal/logger"
	"github.com/catalogsync/backend/internal/usecase"
)

// app carries what every command shares: flags, the loaded config and the run's logger
type app struct {
	cfgFile      string
	rulesVersion int
	storeType    string

	cfg       *config.Config
	runID     string
	logCloser io.Closer

	// newStore replaces the store.type factory when set
	newStore func(ctx context.Context) (domain.DocumentStore, error)
}

// setup loads configuration, starts logging and tags the command context with a run id
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.storeType != "" {
		cfg.Store.Type = a.storeType
	}
	if a.rulesVersion != 0 {
		cfg.Rules.Version = a.rulesVersion
	}
	a.cfg = cfg

	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return err
	}
	a.logCloser = closer

	a.runID = uuid.NewString()
	ctx := logger.WithRunID(cmd.Context(), a.runID)
	cmd.SetContext(ctx)

	logger.Component(ctx, "cli").Info().
		Str("command", cmd.CommandPath()).
		Str("store", cfg.Store.Type).
		Str("catalog_dir", cfg.Catalog.Dir).
		Msg("run started")
	return nil
}

func (a *app) teardown() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// storeContext bounds remote work by the configured store timeout
func (a *app) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Store.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.Store.Timeout)
}

func (a *app) shards() *shardfile.Store {
	return shardfile.New(a.cfg.Catalog.Dir, a.cfg.Catalog.ShardCount, a.cfg.Catalog.ShardPattern)
}

func (a *app) ruleTable() (*domain.RuleTable, error) {
	return rules.LoadVersion(a.cfg.Rules.Dir, a.cfg.Rules.Version)
}

func (a *app) matcher() *usecase.MatchingService {
	return usecase.NewMatchingService(usecase.MatchConfig{
		Threshold:          a.cfg.Matching.Threshold,
		ReviewMargin:       a.cfg.Matching.ReviewMargin,
		EnableDebugLogging: a.cfg.Matching.Debug,
	})
}

func (a *app) collections() usecase.Collections {
	return usecase.Collections{
		Products:      a.cfg.Store.Collections.Products,
		Categories:    a.cfg.Store.Collections.Categories,
		Subcategories: a.cfg.Store.Collections.Subcategories,
	}
}

// openStore builds the document store selected by store.type. The caller closes it.
func (a *app) openStore(ctx context.Context) (domain.DocumentStore, error) {
	if a.newStore != nil {
		return a.newStore(ctx)
	}
	log := logger.Component(ctx, "cli")

	switch a.cfg.Store.Type {
	case "firestore":
		client, err := firestoredb.NewClient(ctx, a.cfg.Store.ProjectID, a.cfg.Store.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "sqlite":
		store, err := sqlitestore.Open(ctx, a.cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		log.Warn().Msg("memory store selected, remote writes are discarded when the run ends")
		return memstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", domain.ErrStoreSetup, a.cfg.Store.Type)
	}
}

func (a *app) publisher(store domain.DocumentStore) *usecase.Publisher {
	return usecase.NewPublisher(store, usecase.PublisherConfig{
		BatchSize:        a.cfg.Store.BatchSize,
		BatchesPerSecond: a.cfg.Store.BatchesPerSecond,
	})
}

func (a *app) remoteCatalog(store domain.DocumentStore) *usecase.RemoteCatalog {
	return usecase.NewRemoteCatalog(store, a.publisher(store), a.cfg.Store.Collections.Products)
}

// withStore opens the document store for the length of fn
func (a *app) withStore(ctx context.Context, fn func(ctx context.Context, store domain.DocumentStore) error) error {
	ctx, cancel := a.storeContext(ctx)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, store)
}
