// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	simulatePattern string
	simulatePeriod  time.Duration
	simulateCount   int
	simulateSweep   time.Duration
)

// Supported frame patterns
var simulatePatterns = []string{"center", "ramp", "sweep", "min", "max"}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Transmit generated iBus frames",
	Long: `Act as a receiver and transmit generated channel frames on the connection.

Patterns:
  center - every channel at 1500
  ramp   - channels spread evenly from 1000 (CH1) to 2000 (CH14)
  sweep  - every channel sweeps 1000-2000-1000, each one phase shifted
  min    - every channel at 1000
  max    - every channel at 2000

Frames are paced at --period (default 7 ms, like a FlySky receiver), which
leaves the inter-frame gap decoders use to find the frame start.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simulatePattern, "pattern", "sweep", "Frame pattern (center, ramp, sweep, min, max)")
	simulateCmd.Flags().DurationVar(&simulatePeriod, "period", 7*time.Millisecond, "Time between frame starts")
	simulateCmd.Flags().IntVar(&simulateCount, "count", 0, "Number of frames to send (0 = until interrupted)")
	simulateCmd.Flags().DurationVar(&simulateSweep, "sweep-period", 2*time.Second, "Duration of one full sweep")
}

// minFramePeriod is the shortest period that still leaves a gap after each
// frame at the given baud rate
func minFramePeriod(baud int) time.Duration {
	// 10 bits per byte on the wire (start + 8 data + stop)
	frameTime := time.Duration(ibus.FrameLength*10) * time.Second / time.Duration(baud)
	return frameTime + ibus.TimeGap
}

// patternChannels returns the channel values of pattern at elapsed time t
func patternChannels(pattern string, t, sweepPeriod time.Duration) ([ibus.NumChannels]uint16, error) {
	var ch [ibus.NumChannels]uint16
	span := uint32(ibus.ChannelMax - ibus.ChannelMin)

	for i := range ch {
		switch pattern {
		case "center":
			ch[i] = ibus.ChannelCenter
		case "min":
			ch[i] = ibus.ChannelMin
		case "max":
			ch[i] = ibus.ChannelMax
		case "ramp":
			ch[i] = ibus.ChannelMin + uint16(uint32(i)*span/(ibus.NumChannels-1))
		case "sweep":
			if sweepPeriod <= 0 {
				return ch, errors.New("sweep period must be positive")
			}
			// Triangle wave, channel i lags by i/NumChannels of a period
			offset := sweepPeriod * time.Duration(i) / ibus.NumChannels
			phase := float64((t+offset)%sweepPeriod) / float64(sweepPeriod)
			level := 2 * phase
			if level > 1 {
				level = 2 - level
			}
			ch[i] = ibus.ChannelMin + uint16(level*float64(span)+0.5)
		default:
			return ch, fmt.Errorf("unknown pattern %q (use one of %v)", pattern, simulatePatterns)
		}
	}
	return ch, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	// Validate the pattern before opening anything
	if _, err := patternChannels(simulatePattern, 0, simulateSweep); err != nil {
		return err
	}
	if portName != "" && simulatePeriod < minFramePeriod(baudRate) {
		return fmt.Errorf("--period %v leaves no inter-frame gap at %d baud (minimum %v)",
			simulatePeriod, baudRate, minFramePeriod(baudRate))
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("ibustat - Simulate\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Pattern: %s, period %v\n", simulatePattern, simulatePeriod)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	sent, err := transmitFrames(ctx, conn, simulatePattern, simulatePeriod, simulateCount)
	logger.Info("simulation finished", zap.Int("frames", sent), zap.String("connection", connInfo))

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// transmitFrames writes count frames (0 = until ctx ends) paced at period.
// Returns the number of frames written.
func transmitFrames(ctx context.Context, w Connection, pattern string, period time.Duration, count int) (int, error) {
	limiter := rate.NewLimiter(rate.Every(period), 1)
	start := time.Now()
	sent := 0

	for count == 0 || sent < count {
		if err := limiter.Wait(ctx); err != nil {
			return sent, err
		}

		channels, err := patternChannels(pattern, time.Since(start), simulateSweep)
		if err != nil {
			return sent, err
		}
		if _, err := w.Write(ibus.EncodeFrame(channels)); err != nil {
			return sent, fmt.Errorf("failed to write frame %d: %w", sent, err)
		}
		sent++
	}
	return sent, nil
}
