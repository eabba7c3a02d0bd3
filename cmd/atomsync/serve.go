package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atomsync/atomsync/internal/httpapi"
	"github.com/atomsync/atomsync/internal/models"
	"github.com/atomsync/atomsync/internal/scheduled"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control-plane server and the periodic sync scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe mirrors cmd/cortex/main.go's component-start-then-wait-for-
// signal shape: start background workers, block on SIGINT/SIGTERM,
// shut everything down gracefully.
func runServe(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpapi.New(a.store, a.syncEngine, a.pipeline, a.rewrite, a.notion, a.anki, a.llm, a.collections, a.metrics, a.log)
	router := srv.Router()

	sched := scheduled.New(a.log.With("component", "scheduler"))
	collections := collectionNames(a)
	cronSpec := fmt.Sprintf("@every %s", a.cfg.Sync.Interval.Duration.String())
	if err := sched.AddJob(cronSpec, scheduled.Job{
		Name: "sync all",
		Run: func(ctx context.Context) error {
			_, err := a.syncEngine.Run(ctx, models.SyncIncremental, collections)
			return err
		},
	}); err != nil {
		return runtimeErr(fmt.Errorf("scheduling sync job: %w", err))
	}
	sched.Start()
	defer sched.Stop()

	addr := fmt.Sprintf("%s:%d", a.cfg.HTTP.Host, a.cfg.HTTP.Port)
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("atomsync serving", "addr", addr)
		errCh <- router.Listen(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return runtimeErr(fmt.Errorf("http server: %w", err))
		}
		return nil
	case sig := <-sigCh:
		a.log.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := router.ShutdownWithContext(ctx); err != nil {
			a.log.Error("graceful shutdown failed", "error", err)
		}
		return nil
	}
}
