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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"mun_dashboard/internal/api"
	"mun_dashboard/internal/logging"
	"mun_dashboard/internal/metrics"
	"mun_dashboard/internal/persist"
	"mun_dashboard/internal/repository"
	"mun_dashboard/internal/service"
	"mun_dashboard/internal/session"
	"mun_dashboard/internal/storage"
	"mun_dashboard/internal/utils"
	"mun_dashboard/pkg/config"
)

const programName = "mun-dashboard"

var configFile string

// loadConfig 載入設定並依設定初始化 logger
func loadConfig() (*config.Config, error) {
	var paths []string
	if configFile != "" {
		paths = append(paths, configFile)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Bootstrap(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func openDatabase(cfg *config.Config) (*storage.Database, error) {
	return storage.Open(storage.DatabaseConfig{
		Driver:   cfg.DB.Driver,
		Host:     cfg.DB.Host,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Name:     cfg.DB.Name,
		Port:     cfg.DB.Port,
		Path:     cfg.DB.Path,
	})
}

func serveRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	abstain, err := session.ParseAbstainPolicy(cfg.Session.AbstainPolicy)
	if err != nil {
		return err
	}

	// 初始化資料庫連接
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("auto migrate database: %w", err)
	}

	local, err := storage.NewLocalStore(cfg.Local.Dir)
	if err != nil {
		return err
	}
	defer local.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	services := service.NewServices(service.Options{
		Repos:   repository.NewRepositories(db),
		Local:   local,
		Metrics: metrics.New(reg),
		Persist: persist.Options{
			LocalDebounce:  cfg.Persist.LocalDebounce,
			RemoteDebounce: cfg.Persist.RemoteDebounce,
			Interval:       cfg.Persist.Interval,
		},
		AbstainPolicy: abstain,
		IdleTimeout:   cfg.Session.IdleTimeout,
	})

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api.SetupRoutes(r, services, []byte(cfg.Auth.JWTSecret), reg)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Log.WithField("address", cfg.Server.Address).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("run server: %w", err)
		}
	case <-ctx.Done():
	}

	logging.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Log.WithError(err).Warn("server shutdown")
	}
	// 會期最後的狀態必須在資料庫關閉前寫入
	return services.CloseAll(shutdownCtx)
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the document tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repository.Migrate(db); err != nil {
				return err
			}
			logging.Log.WithField("driver", cfg.DB.Driver).Info("migration complete")
			return nil
		},
	}
}

func tokenCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := utils.GenerateToken(args[0], []byte(cfg.Auth.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "MUN dashboard session service",
		RunE:          serveRun,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "directory containing config.yaml")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE:  serveRun,
		},
		migrateCommand(),
		tokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		logging.Log.WithError(err).Error("exiting")
		os.Exit(1)
	}
}
