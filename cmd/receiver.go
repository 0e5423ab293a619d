// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"time"

	"github.com/Thermoquad/ibustat/pkg/ibus"
)

// receiver feeds connection bytes through a stream buffer into the decoder.
// Callbacks run on the goroutine that called run, so they may touch the
// decoder state without locking.
type receiver struct {
	buf     *ibus.StreamBuffer
	decoder *ibus.Decoder

	// onFrame is called for every decoded frame
	onFrame func(ibus.Frame)

	// onErrors is called after a batch of bytes raised the error counters,
	// with the counters accumulated by that batch
	onErrors func(delta ibus.Counters)

	// onTick is called on every tick with the cumulative counters and
	// transport overruns
	tick   <-chan time.Time
	onTick func(c ibus.Counters, overruns uint64)

	overruns uint64
}

func newReceiver(opts ...ibus.Option) *receiver {
	r := &receiver{decoder: ibus.NewDecoder(opts...)}
	r.rebind()
	return r
}

// rebind gives the decoder a fresh buffer, as after a reconnect. The channel
// table and counters carry over.
func (r *receiver) rebind() {
	if r.buf != nil {
		r.overruns += r.buf.Overruns()
	}
	r.buf = ibus.NewStreamBuffer(ibus.DefaultStreamBufferSize)
	r.decoder.Begin(r.buf)
}

// Overruns returns bytes dropped across every buffer this receiver used
func (r *receiver) Overruns() uint64 {
	return r.overruns + r.buf.Overruns()
}

// run decodes from conn until ctx is cancelled or the connection fails. The
// caller closes conn; a read still blocked inside the pump goroutine then
// returns.
func (r *receiver) run(ctx context.Context, conn Connection) error {
	buf := r.buf
	errc := make(chan error, 1)
	go func() {
		errc <- ibus.Pump(ctx, conn, buf)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errc:
			r.drain()
			return err

		case <-buf.Ready():
			r.drain()

		case <-r.tick:
			if r.onTick != nil {
				r.onTick(r.decoder.Counters(), r.Overruns())
			}
		}
	}
}

// drain polls the decoder until the buffer is empty
func (r *receiver) drain() {
	before := r.decoder.Counters()

	for r.decoder.Poll() {
		if r.onFrame != nil {
			r.onFrame(r.decoder.Frame())
		}
	}

	after := r.decoder.Counters()
	if r.onErrors != nil && after.Errors() > before.Errors() {
		r.onErrors(after.Sub(before))
	}
}
