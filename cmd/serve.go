package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/terms-extractor/internal/engine"
	"github.com/sells-group/terms-extractor/internal/learning"
	"github.com/sells-group/terms-extractor/internal/monitoring"
)

var (
	servePort     int
	serveNoWarmup bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the term extraction API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		rt, err := initRuntime(ctx, st, reg)
		if err != nil {
			return err
		}
		defer rt.Close()

		startBackground(ctx, rt, !serveNoWarmup)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(rt.Service, reg, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// startBackground launches the periodic jobs that live as long as ctx.
func startBackground(ctx context.Context, rt *engine.Runtime, warmup bool) {
	go learning.NewScheduler(rt.Learning).Run(ctx)
	go rt.Recorder.Run(ctx, cfg.Monitoring.ReportInterval)
	go rt.Service.ReportCache(ctx, cfg.Cache.ReportInterval)

	pools := make([]monitoring.PoolSource, 0, len(rt.Pools))
	for _, p := range rt.Pools {
		pools = append(pools, p)
	}
	checker := monitoring.NewChecker(
		monitoring.NewCollector(rt.Cache, rt.Recorder, pools...),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
	go checker.Run(ctx)

	if !warmup {
		return
	}
	go func() {
		if _, err := rt.Service.Warmup(ctx, cfg.Learning.WarmupDelay, cfg.Learning.WarmupLimit); err != nil {
			zap.L().Warn("cache warmup skipped", zap.Error(err))
		}
	}()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoWarmup, "no-warmup", false, "skip the startup cache warmup")
	rootCmd.AddCommand(serveCmd)
}
