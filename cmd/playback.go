// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
	"github.com/spf13/cobra"
)

var (
	playbackRealtime bool
	playbackSummary  bool
)

var playbackCmd = &cobra.Command{
	Use:   "playback <file>",
	Short: "Print frames from a recording",
	Long: `Read a recording made by the record command and print each frame.

With --realtime the frames are printed with their original spacing. With
--summary only the validation statistics are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlayback,
}

func init() {
	rootCmd.AddCommand(playbackCmd)
	playbackCmd.Flags().BoolVar(&playbackRealtime, "realtime", false, "Reproduce the original frame timing")
	playbackCmd.Flags().BoolVar(&playbackSummary, "summary", false, "Only print validation statistics")
}

func runPlayback(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	p, err := ibus.NewPlayer(f)
	if err != nil {
		return err
	}

	h := p.Header()
	fmt.Printf("ibustat - Playback\n")
	fmt.Printf("Session: %s\n", h.Session)
	fmt.Printf("Started: %s\n", h.Started.Format(time.RFC3339))
	if h.Source != "" {
		fmt.Printf("Source: %s\n", h.Source)
	}
	fmt.Println()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stats := ibus.NewStatistics()
	validator := &frameValidator{limits: ibus.DefaultLimits()}

	show := func(fr ibus.Frame) {
		stats.Record(validator.check(fr))
		if !playbackSummary {
			fmt.Print(ibus.FormatFrame(fr))
		}
	}

	n, err := playFrames(ctx, p, playbackRealtime && !playbackSummary, show)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Printf("\n%d frames: %d valid, %d anomalous (%d out of range, %d stale)\n",
		n, stats.ValidFrames, stats.AnomalousFrames, stats.OutOfRange, stats.StaleFrames)
	return nil
}

// playFrames hands every frame of p to fn, optionally sleeping between frames
// for their original spacing. Returns the number of frames played.
func playFrames(ctx context.Context, p *ibus.Player, realtime bool, fn func(ibus.Frame)) (int, error) {
	var prev time.Time
	n := 0

	for {
		fr, err := p.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		if realtime && !prev.IsZero() {
			if wait := fr.Timestamp.Sub(prev); wait > 0 {
				select {
				case <-ctx.Done():
					return n, ctx.Err()
				case <-time.After(wait):
				}
			}
		}
		prev = fr.Timestamp

		fn(fr)
		n++
	}
}
