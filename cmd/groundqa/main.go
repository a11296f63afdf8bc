package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/groundqa/internal/config"
	"github.com/xxxsen/groundqa/internal/handler"
	"github.com/xxxsen/groundqa/internal/job"
	"github.com/xxxsen/groundqa/internal/model"
	"github.com/xxxsen/groundqa/internal/schedule"
	"github.com/xxxsen/groundqa/internal/service"
)

func main() {
	_ = godotenv.Load()

	var configPath string
	rootCmd := &cobra.Command{
		Use:          "groundqa",
		Short:        "grounded question answering over a document corpus",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (json or yaml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "serve the http api",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	var inputDir, buildID string
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "chunk, embed and index source documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if inputDir == "" {
				return fmt.Errorf("--input is required")
			}
			if buildID == "" {
				buildID = time.Now().UTC().Format("20060102-150405")
			}
			return runIngest(cmd.Context(), cfg, inputDir, buildID)
		},
	}
	ingestCmd.Flags().StringVar(&inputDir, "input", "", "directory of source document json files")
	ingestCmd.Flags().StringVar(&buildID, "build-id", "", "snapshot build id (default: current UTC time)")

	var req model.AskRequest
	askCmd := &cobra.Command{
		Use:   "ask",
		Short: "answer one question and print the result as json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), cfg, &req)
		},
	}
	askCmd.Flags().StringVar(&req.Query, "query", "", "question to ask")
	askCmd.Flags().StringVar(&req.Provider, "provider", "", "generation provider name")
	askCmd.Flags().StringVar(&req.ConversationID, "conversation", "", "conversation id to continue")
	askCmd.Flags().IntVar(&req.NumResults, "num-results", 0, "number of chunks to retrieve")

	rootCmd.AddCommand(runCmd, ingestCmd, askCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.loadIndex(ctx); err != nil {
		return err
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewIndexReloadJob(a.holder, a.loader), cfg.Jobs.IndexReload); err != nil {
		return fmt.Errorf("schedule index reload: %w", err)
	}
	if a.cacheRepo != nil {
		cleanup := job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.Jobs.EmbeddingCacheMaxAgeDays)
		if err := scheduler.AddJob(cleanup, cfg.Jobs.EmbeddingCacheCleanup); err != nil {
			return fmt.Errorf("schedule embedding cache cleanup: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Chat:      handler.NewChatHandler(a.rag),
		Health:    handler.NewHealthHandler(a.holder, a.highlighter, a.manager.Providers()),
		RateLimit: time.Duration(cfg.RateLimitMs) * time.Millisecond,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening",
		zap.String("addr", addr),
		zap.String("index_source", cfg.Index.Source),
		zap.String("conversation_store", cfg.Conversation.Store),
	)

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func runIngest(ctx context.Context, cfg *config.Config, inputDir, buildID string) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	docs, err := service.LoadDocuments(ctx, inputDir)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	svc, err := a.ingestService()
	if err != nil {
		return err
	}
	stats, err := svc.Ingest(ctx, buildID, docs)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runAsk(ctx context.Context, cfg *config.Config, req *model.AskRequest) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.loadIndex(ctx); err != nil {
		return err
	}
	resp, err := a.rag.Ask(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
