package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/trivia-backend/internal/accounts"
	"github.com/DoyleJ11/trivia-backend/internal/config"
	"github.com/DoyleJ11/trivia-backend/internal/httpapi"
	"github.com/DoyleJ11/trivia-backend/internal/questions"
	"github.com/DoyleJ11/trivia-backend/internal/server"
	"github.com/DoyleJ11/trivia-backend/internal/source"
	"github.com/DoyleJ11/trivia-backend/internal/store"
	"github.com/DoyleJ11/trivia-backend/internal/ws"
)

const releaseVersion = "0.1.0"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := &config.Config{}
	cobra.CheckErr(config.NewCommand(cfg, releaseVersion, run).Execute())
}

func run(cmd *cobra.Command, cfg *config.Config) (err error) {
	log, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Driver, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	seed, err := st.LoadAccounts(ctx)
	if err != nil {
		return err
	}
	if cfg.SeedManager != "" {
		user, pass, _ := cfg.SeedManagerCredentials()
		seed = accounts.EnsureManager(seed, user, pass)
	}

	// The table outlives the signal context so accounts can still be saved on the way out.
	tbl, err := accounts.NewTable(context.Background(), seed)
	if err != nil {
		return err
	}
	defer tbl.Close()
	log.Info("accounts loaded", zap.Int("count", len(seed)), zap.String("driver", cfg.Driver))

	bank := questions.NewBank()
	if _, err := bank.Load(ctx, source.Seed()); err != nil {
		return err
	}
	if cfg.QuestionAmount > 0 {
		web := source.NewOpenTDB(cfg.QuestionURL, cfg.QuestionAmount)
		var refresher *source.Refresher
		refresher, err = source.NewRefresher(ctx, bank, web, refreshEvery(cfg), log.Named("source"))
		if err != nil {
			return err
		}
		refresher.Refresh(ctx)
		if cfg.RefreshInterval > 0 {
			refresher.Start()
		}
		defer func() { err = multierr.Append(err, refresher.Shutdown()) }()
	}

	srv := server.New(tbl, bank, log.Named("server"), server.Options{
		IdleTimeout:   cfg.IdleTimeout,
		WriteTimeout:  10 * time.Second,
		HighscoreSize: cfg.HighscoreSize,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, ln) })

	if cfg.HTTPPort > 0 {
		httpSrv := &http.Server{
			Addr: cfg.HTTPAddr(),
			Handler: httpapi.SetupRoutes(httpapi.Deps{
				Accounts: tbl,
				Bank:     bank,
				Server:   srv,
				Log:      log.Named("http"),
				WS:       ws.Options{IdleTimeout: cfg.IdleTimeout, OriginPatterns: cfg.WSOrigins},
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info("http listening", zap.String("addr", httpSrv.Addr))
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("shutting down")

	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	saved, saveErr := accounts.Save(saveCtx, tbl, st)
	if saveErr == nil {
		log.Info("accounts saved", zap.Int("count", saved))
	}
	return multierr.Combine(err, saveErr)
}

// refreshEvery is only used when the refresher is started.
func refreshEvery(cfg *config.Config) time.Duration {
	if cfg.RefreshInterval > 0 {
		return cfg.RefreshInterval
	}
	return time.Hour
}
