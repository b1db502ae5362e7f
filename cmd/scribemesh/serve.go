package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	scribemesh "github.com/scribemesh/scribemesh"
	"github.com/scribemesh/scribemesh/cache"
	"github.com/scribemesh/scribemesh/config"
	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/extract"
	extractanthropic "github.com/scribemesh/scribemesh/extract/anthropic"
	extractopenai "github.com/scribemesh/scribemesh/extract/openai"
	"github.com/scribemesh/scribemesh/logging"
	"github.com/scribemesh/scribemesh/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scribemesh",
		Short: "Realtime transcription agent pipeline",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the realtime gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("agent-config", "", "path to the hot-reloadable agent config file")
	flags.String("redis", "", "redis address for the shared session cache (empty = in-memory)")
	flags.String("mongo", "", "mongodb uri for persistence (empty = in-memory)")
	flags.String("mongo-db", "scribemesh", "mongodb database name")
	flags.String("extractor", "keyword", "extractor backend: keyword, openai or anthropic")
	flags.String("log-level", "info", "log level: debug, info, warn or error")

	v.SetEnvPrefix("SCRIBEMESH")
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)

	return cmd
}

func serve(ctx context.Context, v *viper.Viper) error {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  parseLevel(v.GetString("log-level")),
		Format: "json",
		Output: os.Stdout,
	})

	st, cleanupStore, err := buildStore(ctx, v)
	if err != nil {
		return err
	}
	defer cleanupStore()

	ca, cleanupCache, err := buildCache(ctx, v)
	if err != nil {
		return err
	}
	defer cleanupCache()

	extractor, err := buildExtractor(v)
	if err != nil {
		return err
	}

	var configs core.ConfigProvider
	if path := v.GetString("agent-config"); path != "" {
		provider, err := config.NewProvider(path, func(o *config.Options) { o.Logger = logger })
		if err != nil {
			return fmt.Errorf("load agent config: %w", err)
		}
		configs = provider
	}

	mesh := scribemesh.New(func(o *scribemesh.Options) {
		o.Store = st
		o.Cache = ca
		o.Extractor = extractor
		o.Configs = configs
		o.Logger = logger
	})
	defer mesh.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", mesh.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{Addr: v.GetString("listen"), Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, v *viper.Viper) (core.Store, func(), error) {
	uri := v.GetString("mongo")
	if uri == "" {
		return store.NewInMemory(), func() {}, nil
	}
	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	cleanup := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}
	return store.NewMongo(client.Database(v.GetString("mongo-db"))), cleanup, nil
}

func buildCache(ctx context.Context, v *viper.Viper) (core.Cache, func(), error) {
	addr := v.GetString("redis")
	if addr == "" {
		c := cache.NewInMemory(time.Minute)
		return c, c.Close, nil
	}
	c, err := cache.NewRedisFromAddr(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

func buildExtractor(v *viper.Viper) (core.Extractor, error) {
	switch backend := v.GetString("extractor"); backend {
	case "keyword":
		return extract.NewKeyword(), nil
	case "openai":
		return extractopenai.New(), nil
	case "anthropic":
		return extractanthropic.New(), nil
	default:
		return nil, fmt.Errorf("unknown extractor backend %q", backend)
	}
}

func parseLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
