package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/ai"
	"github.com/xxxsen/groundqa/internal/chunker"
	"github.com/xxxsen/groundqa/internal/config"
	"github.com/xxxsen/groundqa/internal/conversation"
	"github.com/xxxsen/groundqa/internal/db"
	"github.com/xxxsen/groundqa/internal/embedcache"
	"github.com/xxxsen/groundqa/internal/filestore"
	"github.com/xxxsen/groundqa/internal/highlight"
	"github.com/xxxsen/groundqa/internal/index"
	"github.com/xxxsen/groundqa/internal/prompt"
	"github.com/xxxsen/groundqa/internal/repo"
	"github.com/xxxsen/groundqa/internal/retriever"
	"github.com/xxxsen/groundqa/internal/service"
)

const autoProvider = "auto"

// app holds the long-lived components shared by every subcommand.
type app struct {
	cfg         *config.Config
	db          *sql.DB
	redis       *redis.Client
	embedder    ai.IEmbedder
	manager     *ai.Manager
	holder      *index.Holder
	loader      index.Loader
	snapshot    *index.Snapshot
	cacheRepo   *repo.EmbeddingCacheRepo
	highlighter *highlight.Highlighter
	rag         *service.RAGService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, holder: index.NewHolder(nil, "")}
	if err := a.openDatabase(); err != nil {
		return nil, err
	}
	steps := []func() error{
		a.initEmbedder,
		a.initManager,
		a.initLoader,
		a.initRAG,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) openDatabase() error {
	if a.cfg.Database.Driver == "" {
		return nil
	}
	conn, err := db.Open(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn, a.cfg.Database.Driver); err != nil {
		_ = conn.Close()
		return fmt.Errorf("migrations: %w", err)
	}
	a.db = conn
	return nil
}

func (a *app) initEmbedder() error {
	entries := make([]ai.EmbedderEntry, 0, len(a.cfg.Embedding.Providers))
	for _, p := range a.cfg.Embedding.Providers {
		provider, err := ai.NewEmbedProvider(p.Type, p.Data)
		if err != nil {
			return fmt.Errorf("init embed provider %s: %w", p.Name, err)
		}
		entries = append(entries, ai.EmbedderEntry{Name: p.Name, Embedder: ai.NewEmbedder(provider, p.Model)})
	}
	embedder := ai.NewGroupEmbedder(entries)
	if a.cfg.Embedding.DBCache {
		a.cacheRepo = repo.NewEmbeddingCacheRepo(a.db)
		embedder = embedcache.WrapDB(embedder, a.cacheRepo)
	}
	a.embedder = embedcache.WrapLRU(embedder, a.cfg.Embedding.CacheSize, time.Duration(a.cfg.Embedding.CacheTTL)*time.Second)
	return nil
}

func (a *app) initManager() error {
	gcfg := a.cfg.Generation
	generators := make(map[string]ai.IGenerator, len(gcfg.Providers)+1)
	for _, p := range gcfg.Providers {
		provider, err := ai.NewProvider(p.Type, p.Data)
		if err != nil {
			return fmt.Errorf("init generation provider %s: %w", p.Name, err)
		}
		generators[strings.ToLower(p.Name)] = ai.NewGenerator(provider, p.Model)
	}
	if len(gcfg.Auto) > 0 {
		entries := make([]ai.GeneratorEntry, 0, len(gcfg.Auto))
		for _, name := range gcfg.Auto {
			gen := generators[strings.ToLower(name)]
			if gen == nil {
				return fmt.Errorf("generation.auto references unknown provider %s", name)
			}
			entries = append(entries, ai.GeneratorEntry{Name: name, Generator: gen})
		}
		generators[autoProvider] = ai.NewGroupGenerator(entries)
	}
	a.manager = ai.NewManager(generators, ai.ManagerConfig{
		DefaultProvider: strings.ToLower(gcfg.DefaultProvider),
		Timeout:         time.Duration(gcfg.Timeout) * time.Second,
		MaxRetries:      gcfg.MaxRetries,
		Backoff:         time.Duration(gcfg.BackoffMs) * time.Millisecond,
	})
	return nil
}

func (a *app) initLoader() error {
	switch a.cfg.Index.Source {
	case "pgvector":
		a.loader = index.NewSourceLoader(repo.NewChunkRepo(a.db))
	default:
		store, err := filestore.New(a.cfg.FileStore)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
		a.snapshot = index.NewSnapshot(store, a.cfg.Index.Prefix)
		a.loader = a.snapshot
	}
	return nil
}

func (a *app) conversationStore() (conversation.Store, error) {
	ccfg := a.cfg.Conversation
	switch ccfg.Store {
	case "sql":
		return conversation.NewSQLStore(repo.NewConversationRepo(a.db, a.cfg.Database.Driver)), nil
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     ccfg.Redis.Addr,
			Password: ccfg.Redis.Password,
			DB:       ccfg.Redis.DB,
		})
		return conversation.NewRedisStore(a.redis, ccfg.Redis.KeyPrefix), nil
	default:
		return conversation.NewMemoryStore(), nil
	}
}

func (a *app) initRAG() error {
	store, err := a.conversationStore()
	if err != nil {
		return err
	}
	scorer, err := highlight.NewScorer(a.cfg.Highlight.Matcher)
	if err != nil {
		return err
	}
	a.highlighter = highlight.New(highlight.Config{
		MinQuoteChars: a.cfg.Highlight.MinQuoteChars,
		MaxQuotes:     a.cfg.Highlight.MaxQuotes,
		Threshold:     a.cfg.Highlight.Threshold,
		Scorer:        scorer,
	})
	a.rag = service.NewRAGService(
		store,
		retriever.New(a.embedder, a.holder),
		prompt.NewAssembler(a.cfg.Context.MaxTurns, a.cfg.Context.MaxMessageChars),
		a.manager,
		a.highlighter,
		service.RAGConfig{
			DefaultResults: a.cfg.Retrieval.DefaultResults,
			MaxResults:     a.cfg.Retrieval.MaxResults,
			HistoryTurns:   a.cfg.Retrieval.HistoryTurns,
			ContextTurns:   a.cfg.Context.MaxTurns,
			Temperature:    a.cfg.Generation.Temperature,
		},
	)
	return nil
}

// loadIndex performs the startup load. A corrupt snapshot is fatal; a missing
// one serves an empty index.
func (a *app) loadIndex(ctx context.Context) error {
	if _, err := a.holder.Reload(ctx, a.loader); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	if a.holder.Len() == 0 {
		logutil.GetLogger(ctx).Warn("serving with an empty index, answers will have no sources")
	}
	return nil
}

func (a *app) ingestService() (*service.IngestService, error) {
	c, err := chunker.New(a.cfg.Chunker.ChunkSize, a.cfg.Chunker.Overlap, a.cfg.Chunker.MinWords)
	if err != nil {
		return nil, err
	}
	var sink service.ChunkSink
	if a.cfg.Index.Source == "pgvector" {
		sink = service.NewRepoSink(repo.NewChunkRepo(a.db))
	} else {
		sink = service.NewSnapshotSink(a.snapshot)
	}
	logutil.GetLogger(context.Background()).Info("ingest configured",
		zap.String("index_source", a.cfg.Index.Source),
		zap.Int("concurrency", a.cfg.Ingest.Concurrency),
	)
	return service.NewIngestService(c, a.embedder, sink, service.IngestConfig{
		Concurrency:       a.cfg.Ingest.Concurrency,
		RequestsPerSecond: a.cfg.Ingest.RequestsPerSecond,
	}), nil
}
