package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/BrewHubPHL/pos-terminal/internal/api"
	"github.com/BrewHubPHL/pos-terminal/internal/cart"
	"github.com/BrewHubPHL/pos-terminal/internal/catalog"
	"github.com/BrewHubPHL/pos-terminal/internal/diag"
	"github.com/BrewHubPHL/pos-terminal/internal/kds"
	"github.com/BrewHubPHL/pos-terminal/internal/offline"
	"github.com/BrewHubPHL/pos-terminal/internal/payment"
	"github.com/BrewHubPHL/pos-terminal/internal/store"
	"github.com/BrewHubPHL/pos-terminal/internal/ticket"
	"github.com/BrewHubPHL/pos-terminal/internal/voucher"
)

type Config struct {
	BackendURL     string
	StaffToken     string
	RequestTimeout time.Duration
	DiagAddr       string

	RedisAddr    string
	KafkaBrokers []string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
}

func loadConfig() *Config {
	cfg := &Config{
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:3000/api"),
		StaffToken:     getEnv("STAFF_TOKEN", ""),
		RequestTimeout: 10 * time.Second,
		DiagAddr:       getEnv("DIAG_ADDR", "127.0.0.1:7070"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		DBHost:         getEnv("DB_HOST", ""),
		DBUser:         getEnv("DB_USER", "pos"),
		DBPassword:     getEnv("DB_PASSWORD", "pos"),
		DBName:         getEnv("DB_NAME", "pos_terminal"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid DB_PORT")
	}
	cfg.DBPort = port
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := loadConfig()

	client := api.New(api.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.RequestTimeout,
		Token:   api.StaticToken(cfg.StaffToken),
	})

	queue := buildQueueStore(cfg)
	defer queue.Close()

	menuCache := buildMenuCache(cfg)
	menu := catalog.NewService(client, menuCache)

	var forwarder offline.OrderForwarder
	if len(cfg.KafkaBrokers) > 0 {
		kafkaFwd := kds.NewForwarder(cfg.KafkaBrokers)
		defer kafkaFwd.Close()
		forwarder = kafkaFwd
		log.Info().Strs("brokers", cfg.KafkaBrokers).Msg("kitchen forwarding enabled")
	}

	monitor := offline.NewMonitor(client)
	guard := offline.NewGuard(client)
	syncer := offline.NewSyncer(client, queue, forwarder)

	machine := ticket.NewMachine(ticket.Config{
		Cart:       cart.NewBuilder(),
		Orders:     client,
		Initiator:  payment.NewInitiator(client),
		Reconciler: payment.NewReconciler(client),
		Guard:      guard,
		Queue:      queue,
		Monitor:    monitor,
		Vouchers:   voucher.NewClient(client, monitor),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := monitor.Subscribe()
	go monitor.Run(ctx)
	go syncer.Run(ctx)
	go handleConnectivity(ctx, events, guard, syncer, menu)

	if err := menu.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial menu refresh failed, serving cached menu")
	}

	handler := diag.NewHandler(machine, monitor, guard, queue)
	srv := &http.Server{
		Addr:         cfg.DiagAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.DiagAddr).Msg("diagnostics API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("diagnostics server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("diagnostics server forced to shut down")
	}
	log.Info().Msg("terminal exited")
}

// handleConnectivity reacts to heartbeat transitions: going offline opens a
// capped cash session, coming back closes it and drains the queue.
func handleConnectivity(ctx context.Context, events <-chan offline.Event, guard *offline.Guard, syncer *offline.Syncer, menu *catalog.Service) {
	for {
		select {
		case ev := <-events:
			if ev.Online {
				onReconnect(ctx, guard, syncer, menu)
			} else {
				session := guard.EnsureSession(ctx)
				log.Warn().
					Str("session_id", session.ID).
					Int64("cap_cents", session.CapMinorUnits).
					Msg("offline mode active, cash only")
			}
		case <-ctx.Done():
			return
		}
	}
}

func onReconnect(ctx context.Context, guard *offline.Guard, syncer *offline.Syncer, menu *catalog.Service) {
	if report, err := guard.CloseOnReconnect(ctx); err != nil {
		log.Error().Err(err).Msg("offline session close failed, will retry on next reconnect")
	} else if report != nil {
		log.Info().
			Str("session_id", report.SessionID).
			Int64("duration_min", report.DurationMinutes).
			Int64("orders", report.OrdersCount).
			Int64("cash_cents", report.CashTotalMinor).
			Msg("offline session closed")
	}

	if _, err := syncer.SyncNow(ctx); err != nil && !errors.Is(err, offline.ErrSyncInProgress) {
		log.Warn().Err(err).Msg("queue replay incomplete, periodic retry will resume")
	}

	if err := menu.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("menu refresh after reconnect failed")
	}
}

func buildQueueStore(cfg *Config) store.QueueStore {
	if cfg.DBHost == "" {
		log.Warn().Msg("no DB_HOST configured, offline queue is in-memory and will not survive a restart")
		return store.NewMemoryStore()
	}
	cred := &store.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: getEnv("MIGRATIONS_DIR", "migrations"),
	}
	pg, err := store.NewPostgresStore(cred)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open offline queue database")
	}
	if err := pg.RunMigrations(cred); err != nil {
		log.Fatal().Err(err).Msg("failed to run offline queue migrations")
	}
	return pg
}

func buildMenuCache(cfg *Config) catalog.Cache {
	if cfg.RedisAddr == "" {
		return catalog.NewMemoryCache()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, menu cache is in-memory")
		return catalog.NewMemoryCache()
	}
	return catalog.NewRedisCache(rdb)
}
