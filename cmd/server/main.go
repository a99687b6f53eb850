package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"hearing-intake/internal/agent"
	"hearing-intake/internal/config"
	"hearing-intake/internal/consultation"
	"hearing-intake/internal/llm"
	"hearing-intake/internal/platform/logger"
	"hearing-intake/internal/platform/metrics"
	"hearing-intake/internal/platform/telegram"
	"hearing-intake/internal/platform/tracer"
	"hearing-intake/internal/report"
	"hearing-intake/internal/retrieval"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App, cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	tp, err := tracer.Init(cfg.App, cfg.Tracing)
	if err != nil {
		log.Fatal("failed to init tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	m := metrics.NewCollector(cfg.App.Name, prometheus.DefaultRegisterer)

	// 1. Infrastructure
	repo := openRepository(cfg.Database, log)

	corpus, err := retrieval.LoadCorpus(cfg.RAG.CorpusPath)
	if err != nil {
		log.Warn("reference corpus not loaded, grounding will fail until it is available",
			zap.String("path", cfg.RAG.CorpusPath),
			zap.Error(err),
		)
		corpus = retrieval.NewCorpus(cfg.RAG.CorpusPath, nil)
	} else {
		log.Info("reference corpus loaded",
			zap.String("path", corpus.Source()),
			zap.Int("pages", corpus.PageCount()),
		)
	}

	// 2. Clients
	chatLLM := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.ChatModel,
		RequestTimeout:  cfg.LLM.RequestTimeout,
		BreakerFailures: cfg.LLM.BreakerFailures,
		BreakerCooldown: cfg.LLM.BreakerCooldown,
	}, log.Named("llm.chat"))
	extractLLM := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.ExtractModel,
		RequestTimeout:  cfg.LLM.RequestTimeout,
		BreakerFailures: cfg.LLM.BreakerFailures,
		BreakerCooldown: cfg.LLM.BreakerCooldown,
	}, log.Named("llm.extract"))

	// 3. Services
	rag := retrieval.NewRAG(corpus, chatLLM, cfg.RAG.MaxContextTokens, log.Named("retrieval"))
	extractor := agent.NewFactExtractor(extractLLM, m, log.Named("extractor"))

	consultationSvc := consultation.NewService(repo, chatLLM, extractor, rag, consultation.Options{
		ReplyTemperature: cfg.Reply.Temperature,
		ReplyMaxTokens:   cfg.Reply.MaxTokens,
	}, m, log.Named("consultation"))

	var deliverer consultation.ReportDeliverer
	if cfg.Report.TelegramToken != "" {
		tgClient := telegram.NewClient(cfg.Report.TelegramToken)
		deliverer = report.NewTelegramDeliverer(tgClient, cfg.Report.DoctorChatID, cfg.Report.FontPath, log.Named("report"))
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, reports will not be sent to the clinician")
	}
	consultationSvc.WithReports(report.NewBuilder(rag, log.Named("report")), deliverer)

	consultationHandler := consultation.NewHandler(consultationSvc, rag, log.Named("http"))

	// 4. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		consultation.RegisterRoutes(r, consultationHandler)
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openRepository connects to postgres and applies migrations. Without a
// DATABASE_URL, or when the database never comes up, charts are kept in
// memory.
func openRepository(cfg config.DatabaseConfig, log *zap.Logger) consultation.Repository {
	if cfg.URL == "" {
		log.Info("DATABASE_URL not set, using in-memory chart storage")
		return consultation.NewMemoryRepository()
	}

	db, err := connectDB("postgres", cfg, 2*time.Second, log)
	if err != nil {
		log.Error("could not connect to database, using in-memory chart storage", zap.Error(err))
		return consultation.NewMemoryRepository()
	}
	log.Info("connected to database")

	mig, err := migrate.New(cfg.MigrationsPath, cfg.URL)
	if err != nil {
		log.Error("migration init failed", zap.Error(err))
	} else if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("migration up failed", zap.Error(err))
	} else {
		log.Info("migrations applied")
	}

	return consultation.NewRepository(db)
}

// connectDB opens and pings the database, retrying up to cfg.ConnectRetries
// times. Handles from failed attempts are closed.
func connectDB(driverName string, cfg config.DatabaseConfig, wait time.Duration, log *zap.Logger) (*sql.DB, error) {
	err := errors.New("no connection attempts configured")
	for i := 0; i < cfg.ConnectRetries; i++ {
		if i > 0 {
			time.Sleep(wait)
		}
		var db *sql.DB
		db, err = sql.Open(driverName, cfg.URL)
		if err != nil {
			continue
		}
		if err = db.Ping(); err == nil {
			return db, nil
		}
		_ = db.Close()
		log.Info("waiting for database", zap.Int("attempt", i+1), zap.Int("max", cfg.ConnectRetries), zap.Error(err))
	}
	return nil, err
}
