// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/spf13/cobra"
)

// Exit codes of frame_test
const (
	exitFrameReceived = 0
	exitTimeout       = 1
	exitConnError     = 2
)

var frameTestTimeout int

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid iBus frame",
	Long: `Wait for a valid iBus frame on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any valid
channel frame. It ignores invalid bytes and waits for a complete frame whose
checksum matches.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking receiver wiring before a flight.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(exitConnError)
	}

	fmt.Printf("ibustat - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid iBus frame...\n\n")

	frame, counters, err := waitForFrame(cmd.Context(), conn, time.Duration(frameTestTimeout)*time.Second)
	conn.Close()

	code := frameTestResult(frame, counters, err)
	os.Exit(code)
	return nil
}

// waitForFrame decodes from conn until the first valid frame or the timeout
func waitForFrame(ctx context.Context, conn Connection, timeout time.Duration) (ibus.Frame, ibus.Counters, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var frame ibus.Frame
	rx := newReceiver()
	rx.onFrame = func(f ibus.Frame) {
		if !frame.Valid() {
			frame = f
			cancel()
		}
	}

	err := rx.run(ctx, conn)
	if frame.Valid() {
		err = nil
	}
	return frame, rx.decoder.Counters(), err
}

// frameTestResult reports the outcome and returns the exit code
func frameTestResult(frame ibus.Frame, counters ibus.Counters, err error) int {
	switch {
	case err == nil && frame.Valid():
		if counters.DiscardedBytes > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", counters.DiscardedBytes)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Command: %s (0x%02X)\n", ibus.FormatCommand(ibus.CommandChannels), ibus.CommandChannels)
		fmt.Printf("  Length: %d bytes\n", ibus.FrameLength)
		fmt.Printf("  Checksum: 0x%04X\n", ibus.Checksum(ibus.EncodeFrame(frame.Channels)[:ibus.FrameLength-2]))
		fmt.Print(ibus.FormatChannels(frame.Channels))
		return exitFrameReceived

	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		if counters.Bytes > 0 {
			fmt.Fprintf(os.Stderr, "  %s\n", ibus.FormatCounters(counters))
		}
		return exitTimeout

	default:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		return exitConnError
	}
}
