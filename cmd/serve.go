// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Export decoded channels as Prometheus metrics",
	Long: `Decode frames continuously and serve channel values and decoder counters
on an HTTP endpoint in the Prometheus text format.

Metrics:
  ibus_channel_value{channel="1".."14"}  last decoded value
  ibus_frames_total                     frames decoded
  ibus_frames_rejected_total{reason}    checksum, unknown_command, aborted
  ibus_last_frame_age_seconds           time since the last frame

The connection is reopened with exponential backoff when it drops.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":9105", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := newRegistry()
	metrics := newDecoderMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler(reg))
	srv := &http.Server{
		Addr:              serveListen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	logger.Info("serving metrics",
		zap.String("listen", serveListen),
		zap.String("connection", connInfo))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	rx := newReceiver()
	rx.onFrame = metrics.observeFrame
	rx.tick = ticker.C
	rx.onTick = metrics.observeCounters

	cm := newConnectionManager(conn, connInfo, rx)
	defer cm.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = cm.run(runCtx)
	}()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}

	cancel()
	<-runDone
	logger.Info("stopped", zap.String("counters", ibus.FormatCounters(metrics.counters)))
	return nil
}
