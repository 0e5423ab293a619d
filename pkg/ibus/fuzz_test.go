// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ibus

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomChannels(rng *rand.Rand) [NumChannels]uint16 {
	var ch [NumChannels]uint16
	for i := range ch {
		ch[i] = uint16(rng.Intn(1 << 16))
	}
	return ch
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecoder_RandomBytes feeds random bytes with random spacing to the
// decoder and verifies it doesn't panic or leave the buffer bounds
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d, src := newScriptedDecoder()

		// Random byte runs separated by random gaps
		for run := rng.Intn(8) + 1; run > 0; run-- {
			data := make([]byte, rng.Intn(96)+1)
			rng.Read(data)
			src.send(time.Duration(rng.Intn(6000))*time.Microsecond, data)
		}

		for d.Poll() {
		}

		if d.ptr > d.length || d.ptr > len(d.buffer) {
			t.Fatalf("Round %d: buffer index %d outside length %d", i, d.ptr, d.length)
		}
		if c := d.Counters(); c.Bytes != uint64(len(src.data)) {
			t.Errorf("Round %d: consumed %d bytes, want %d", i, c.Bytes, len(src.data))
		}
	}
}

// TestFuzzDecoder_RoundTrip encodes random channel values and checks they
// come back unchanged
func TestFuzzDecoder_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	d, src := newScriptedDecoder()
	for i := 0; i < rounds; i++ {
		channels := randomChannels(rng)
		src.send(TimeGap+time.Duration(rng.Intn(4000))*time.Microsecond, EncodeFrame(channels))

		if !d.Poll() {
			t.Fatalf("Round %d: Poll() = false for %v", i, channels)
		}
		if got := d.Channels(); got != channels {
			t.Errorf("Round %d: channels mismatch: expected %v, got %v", i, channels, got)
		}
	}
}

// TestFuzzDecoder_SingleByteCorruption flips one byte of a frame. The running
// checksum catches every single-byte change, so the table must never move.
func TestFuzzDecoder_SingleByteCorruption(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d, src := newScriptedDecoder()
		good := randomChannels(rng)
		src.send(idle, EncodeFrame(good))
		if !d.Poll() {
			t.Fatalf("Round %d: clean frame did not decode", i)
		}

		frame := EncodeFrame(randomChannels(rng))
		idx := rng.Intn(len(frame))
		frame[idx] ^= byte(rng.Intn(255) + 1)
		src.send(idle, frame)

		if d.Poll() {
			t.Errorf("Round %d: corrupted byte %d accepted", i, idx)
		}
		if d.Channels() != good {
			t.Errorf("Round %d: channel table changed by a corrupted frame", i)
		}
	}
}

// TestFuzzDecoder_NoiseBetweenFrames interleaves gap-separated noise with
// valid frames; every valid frame must decode
func TestFuzzDecoder_NoiseBetweenFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	d, src := newScriptedDecoder()
	for i := 0; i < rounds; i++ {
		noise := make([]byte, rng.Intn(40)+1)
		rng.Read(noise)
		src.send(idle, noise)

		channels := randomChannels(rng)
		src.send(TimeGap, EncodeFrame(channels))

		if !d.Poll() {
			t.Fatalf("Round %d: frame after noise did not decode", i)
		}
		if d.Channels() != channels {
			t.Errorf("Round %d: channels mismatch after noise", i)
		}
	}
}
