package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/config"
	"github.com/xxxsen/mtodo/internal/cooldown"
	"github.com/xxxsen/mtodo/internal/db"
	"github.com/xxxsen/mtodo/internal/handler"
	"github.com/xxxsen/mtodo/internal/job"
	"github.com/xxxsen/mtodo/internal/mail"
	"github.com/xxxsen/mtodo/internal/metrics"
	"github.com/xxxsen/mtodo/internal/middleware"
	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/repo"
	"github.com/xxxsen/mtodo/internal/schedule"
	"github.com/xxxsen/mtodo/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mtodo",
		Short: "mtodo backend server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (environment variables override it)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run mtodo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sqlDB, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return runServer(cfg, sqlDB)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sqlDB, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	var email, role string
	setRoleCmd := &cobra.Command{
		Use:   "set-role",
		Short: "change the role of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			role = strings.ToLower(strings.TrimSpace(role))
			if role != model.RoleUser && role != model.RoleAdmin {
				return fmt.Errorf("--role must be %q or %q", model.RoleUser, model.RoleAdmin)
			}
			_, sqlDB, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			ctx := context.Background()
			users := repo.NewUserRepo(sqlDB)
			user, err := users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
			if err != nil {
				return fmt.Errorf("find user: %w", err)
			}
			if err := users.UpdateRole(ctx, user.ID, role, time.Now().Unix()); err != nil {
				return fmt.Errorf("update role: %w", err)
			}
			logutil.GetLogger(ctx).Info("role updated", zap.String("user_id", user.ID), zap.String("role", role))
			return nil
		},
	}
	setRoleCmd.Flags().StringVar(&email, "email", "", "user email")
	setRoleCmd.Flags().StringVar(&role, "role", model.RoleAdmin, "new role (user or admin)")
	_ = setRoleCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(runCmd, migrateCmd, setRoleCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func bootstrap(configPath string) (*config.Config, *sql.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath),
		zap.String("app_env", cfg.AppEnv),
	)

	sqlDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, sqlDB, nil
}

func runServer(cfg *config.Config, sqlDB *sql.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logutil.GetLogger(ctx)
	log.Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("base_url", cfg.BaseURL),
		zap.String("session_delivery", cfg.SessionDelivery),
		zap.Bool("smtp", cfg.Mail.Enabled()),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	resetCooldown, closeCooldown, err := newCooldownStore(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeCooldown()

	userRepo := repo.NewUserRepo(sqlDB)
	todoRepo := repo.NewTodoRepo(sqlDB)

	dispatcher := mail.NewDispatcher(mail.NewSender(cfg.Mail), cfg.BaseURL, collector)
	authService := service.NewAuthService(
		userRepo,
		dispatcher,
		resetCooldown,
		collector,
		[]byte(cfg.JWTSecret),
		time.Hour*time.Duration(cfg.JWTTTLHours),
	)
	todoService := service.NewTodoService(todoRepo, cfg.Todo.ScopedGet)

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService, cfg.SessionDelivery, cfg.IsProduction()),
		Todos:     handler.NewTodoHandler(todoService),
		Sessions:  authService,
		Metrics:   metrics.Handler(registry),
		RateLimit: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}

	scheduler := schedule.NewCronScheduler()
	cleanup := job.NewTokenCleanupJob(userRepo)
	if err := scheduler.AddJob(cleanup, cfg.TokenSweepCron); err != nil {
		return fmt.Errorf("schedule token cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()
	go scheduler.RunNow(cleanup.Name())

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.SecureHeaders(cfg.IsProduction()),
			middleware.CORS(cfg.AllowedOrigins()),
			middleware.Metrics(collector),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	log.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server stopping...")
	return nil
}

// newCooldownStore shares the reset-mail cooldown through Redis when an
// address is configured, and keeps it in process otherwise.
func newCooldownStore(ctx context.Context, cfg config.RedisConfig) (cooldown.Store, func(), error) {
	if cfg.Addr == "" {
		return cooldown.NewLRU(0, service.ResetCooldown), func() {}, nil
	}
	client, err := cooldown.OpenRedis(ctx, cfg.Addr)
	if err != nil {
		return nil, nil, err
	}
	logutil.GetLogger(ctx).Info("redis cooldown store enabled", zap.String("addr", cfg.Addr))
	return cooldown.NewRedis(client, service.ResetCooldown), func() { _ = client.Close() }, nil
}
