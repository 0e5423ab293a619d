// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rawLogHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display iBus frames as they arrive.

Each valid frame is printed with its timestamp followed by the 14 channel
values. Frames failing the checksum or carrying an unknown command are
dropped silently; their counts are logged when the connection closes.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print the wire bytes of each frame")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("ibustat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rx := newReceiver()
	rx.onFrame = func(f ibus.Frame) {
		fmt.Print(ibus.FormatFrame(f))
		if rawLogHex {
			fmt.Print(ibus.FormatHex(ibus.EncodeFrame(f.Channels)))
		}
	}

	err = rx.run(ctx, conn)
	logger.Info("decoder counters",
		zap.String("connection", connInfo),
		zap.String("counters", ibus.FormatCounters(rx.decoder.Counters())),
		zap.Uint64("overruns", rx.Overruns()))

	switch {
	case err == nil, ctx.Err() != nil:
		return nil
	case isClosed(err):
		logger.Info("connection closed")
		return nil
	default:
		return fmt.Errorf("read failed: %w", err)
	}
}
