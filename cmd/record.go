// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	recordOutput   string
	recordDuration time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record decoded frames to a file",
	Long: `Decode frames and append them to a CBOR recording until interrupted.

The recording starts with a header carrying a session ID, the start time and
the connection description, followed by one item per frame with its channel
values and receive timestamp. Use the playback command to read it back.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "Recording file to create")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
	_ = recordCmd.MarkFlagRequired("output")
}

func runRecord(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	f, err := os.Create(recordOutput)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	defer f.Close()

	rec, err := ibus.NewRecorder(f, connInfo)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, recordDuration)
		defer cancel()
	}

	fmt.Printf("ibustat - Record\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s (session %s)\n", recordOutput, rec.Header().Session)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	err = recordFrames(ctx, conn, rec)

	logger.Info("recording finished",
		zap.String("file", recordOutput),
		zap.String("session", rec.Header().Session),
		zap.Uint64("frames", rec.Frames()))

	if err != nil {
		return err
	}
	return f.Sync()
}

// recordFrames writes every decoded frame to rec until ctx ends or conn fails
func recordFrames(ctx context.Context, conn Connection, rec *ibus.Recorder) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var writeErr error
	rx := newReceiver()
	rx.onFrame = func(f ibus.Frame) {
		if writeErr != nil {
			return
		}
		if err := rec.Write(f); err != nil {
			writeErr = err
			cancel()
		}
	}

	err := rx.run(ctx, conn)
	switch {
	case writeErr != nil:
		return writeErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), isClosed(err):
		return nil
	default:
		return fmt.Errorf("read failed: %w", err)
	}
}
