// SPDX-License-Identifier: Apache-2.0
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
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	channelMin    uint16
	channelMax    uint16
	staleAfter    time.Duration
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor channels and detect frame errors",
	Long: `Track decoded channels, rejected frames and anomalous values with statistics.

This command decodes every frame and detects:
  - Checksum failures and unknown commands
  - Frames cut short by an inter-frame gap
  - Channel values outside the expected pulse range (default 1000-2000)
  - Stale frames (too long since the previous frame)
  - Statistics and trends (frame rate, error rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

The connection is reopened with exponential backoff when it drops; the last
channel values and counters are kept across reconnects.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds, text mode)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	monitorCmd.Flags().Uint16Var(&channelMin, "min", ibus.ChannelMin, "Lowest expected channel value")
	monitorCmd.Flags().Uint16Var(&channelMax, "max", ibus.ChannelMax, "Highest expected channel value")
	monitorCmd.Flags().DurationVar(&staleAfter, "stale-after", 100*time.Millisecond, "Flag frames arriving later than this after the previous one (0 disables)")
}

// frameValidator remembers the previous frame for the stale check
type frameValidator struct {
	limits ibus.Limits
	prev   ibus.Frame
}

func (v *frameValidator) check(f ibus.Frame) []ibus.ValidationError {
	errs := ibus.ValidateFrame(f, &v.prev, v.limits)
	v.prev = f
	return errs
}

// reset forgets the previous frame so a reconnect is not reported as stale
func (v *frameValidator) reset() {
	v.prev = ibus.Frame{}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if channelMin > channelMax {
		return fmt.Errorf("--min %d is above --max %d", channelMin, channelMax)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}

	validator := &frameValidator{limits: ibus.Limits{
		Min:              channelMin,
		Max:              channelMax,
		MaxFrameInterval: staleAfter,
	}}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cm := newConnectionManager(conn, connInfo, newReceiver())
	defer cm.Close()

	if useTUI {
		return runTUIMode(ctx, cm, validator)
	}
	return runTextMode(ctx, cm, validator)
}

// printDecodeErrors prints frames the decoder rejected in highlighted format
func printDecodeErrors(delta ibus.Counters) {
	timestamp := time.Now().Format("15:04:05.000")
	if delta.ChecksumErrors > 0 {
		fmt.Printf("[%s] \033[1;31mCHECKSUM ERROR:\033[0m %d frame(s) rejected\n", timestamp, delta.ChecksumErrors)
	}
	if delta.UnknownCommands > 0 {
		fmt.Printf("[%s] \033[1;31mUNKNOWN COMMAND:\033[0m %d frame(s) rejected\n", timestamp, delta.UnknownCommands)
	}
	if delta.AbortedFrames > 0 {
		fmt.Printf("[%s] \033[1;33mFRAME ABORTED:\033[0m %d frame(s) cut short by a gap\n", timestamp, delta.AbortedFrames)
	}
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(f ibus.Frame, errs []ibus.ValidationError) {
	timestamp := f.Timestamp.Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, ibus.FormatCommand(ibus.CommandChannels), ibus.CommandChannels)
	fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")

	for i, err := range errs {
		switch err.Type {
		case ibus.AnomalyOutOfRange:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		case ibus.AnomalyStaleFrame:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Print(ibus.FormatChannels(f.Channels))
	fmt.Printf("  >>> FRAME FLAGGED <<<\n\n")
}

// runTextMode prints errors as they happen and a statistics summary on every tick
func runTextMode(ctx context.Context, cm *connectionManager, validator *frameValidator) error {
	fmt.Printf("ibustat - Monitor\n")
	fmt.Printf("Connection: %s\n", cm.connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	rx := cm.rx
	stats := ibus.NewStatistics()

	// Decoder errors are only reported once the first frame lined us up
	synchronized := false
	var discardedBase uint64

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	printStats := func(c ibus.Counters, overruns uint64) {
		stats.Update(c)
		stats.Overruns = overruns
		fmt.Println()
		fmt.Print(stats.String())
		fmt.Println()
	}

	rx.tick = statsTicker.C
	rx.onTick = printStats

	rx.onFrame = func(f ibus.Frame) {
		if !synchronized {
			synchronized = true
			skipped := rx.decoder.Counters().DiscardedBytes - discardedBase
			if skipped > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", skipped)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}
		}

		errs := validator.check(f)
		stats.Record(errs)

		if len(errs) > 0 {
			printValidationErrors(f, errs)
		} else if showAll {
			fmt.Print(ibus.FormatFrame(f))
		}
	}

	rx.onErrors = func(delta ibus.Counters) {
		if synchronized {
			printDecodeErrors(delta)
		}
	}

	cm.onLost = func(err error) {
		fmt.Printf("[%s] \033[1;31mCONNECTION LOST:\033[0m %v\n\n", time.Now().Format("15:04:05.000"), err)
	}
	cm.onReconnected = func(connInfo string) {
		fmt.Printf("[%s] \033[1;32mRECONNECTED:\033[0m %s\n\n", time.Now().Format("15:04:05.000"), connInfo)
		synchronized = false
		discardedBase = rx.decoder.Counters().DiscardedBytes
		validator.reset()
	}

	err := cm.run(ctx)
	printStats(rx.decoder.Counters(), rx.Overruns())

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runTUIMode runs the monitor in the terminal UI. Frames are batched and
// handed to the UI every 50 ms.
func runTUIMode(ctx context.Context, cm *connectionManager, validator *frameValidator) error {
	// Keep log output off the alternate screen
	if l, err := newLogger(settings.Log, false); err == nil {
		logger = l
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialMonitorModel(cm.connInfo, showAll, validator.limits)
	p := tea.NewProgram(m, tea.WithAltScreen())

	rx := cm.rx
	batchTicker := time.NewTicker(50 * time.Millisecond)
	defer batchTicker.Stop()

	var pending []frameResult
	var lastCounters ibus.Counters

	rx.tick = batchTicker.C
	rx.onFrame = func(f ibus.Frame) {
		pending = append(pending, frameResult{
			frame:            f,
			validationErrors: validator.check(f),
		})
	}
	rx.onTick = func(c ibus.Counters, overruns uint64) {
		if len(pending) == 0 && c == lastCounters {
			return
		}
		p.Send(monitorBatchMsg{results: pending, counters: c, overruns: overruns})
		pending = nil
		lastCounters = c
	}

	cm.onLost = func(err error) {
		p.Send(connectionLostMsg{err: err})
	}
	cm.onReconnected = func(connInfo string) {
		validator.reset()
		p.Send(reconnectedMsg{connInfo: connInfo})
	}

	go func() {
		_ = cm.run(ctx)
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
