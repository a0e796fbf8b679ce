// storeprof churns the entity store the way a busy server does (avatars that
// persist, projectiles that come and go) and writes a pprof profile.
//
// Usage:
//
//	go run ./cmd/storeprof [-mode cpu|mem] [-frames n] [-entities n] [-chunk bytes]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/profile"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/replication"
	"github.com/l1jgo/simcore/internal/sim"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	mode := flag.String("mode", "cpu", "profile kind: cpu or mem")
	frames := flag.Int("frames", 10000, "frames to simulate")
	avatars := flag.Int("entities", 512, "long-lived avatars")
	chunk := flag.Int("chunk", ecs.DefaultChunkSize, "chunk size in bytes")
	out := flag.String("out", ".", "profile output directory")
	flag.Parse()

	switch *mode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*out)).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(*out)).Stop()
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}

	reg, comps, err := sim.NewRegistry()
	if err != nil {
		return err
	}
	w, err := ecs.NewWorld(reg, ecs.NewChunkAllocator(*chunk))
	if err != nil {
		return err
	}
	links := linking.NewContext()
	links.Attach(w)
	settings := sim.DefaultSettings()
	settings.FireCooldown = 4
	s := sim.NewSimulator(w, comps, links, sim.NewDefaultRules(), settings)

	hs := make([]ecs.Handle, 0, *avatars)
	for i := 0; i < *avatars; i++ {
		h, _, err := s.SpawnAvatar(uint64(i+1), vmath.Vec3{X: float32(i % 32), Z: float32(i / 32)})
		if err != nil {
			return err
		}
		hs = append(hs, h)
	}

	const dt = float32(0.05)
	start := time.Now()
	peak := 0
	for f := uint32(1); f <= uint32(*frames); f++ {
		for i, h := range hs {
			in := replication.Input{
				Frame:     f,
				Direction: vmath.Vec3{X: float32(i%3) - 1, Z: 1},
				Actions:   replication.ActionForward | replication.ActionFire,
			}
			if err := s.Apply(h, in, dt); err != nil {
				return fmt.Errorf("frame %d: %w", f, err)
			}
		}
		s.StepProjectiles(dt)
		w.FlushDestroyQueue()
		peak = max(peak, w.Len())
		if err := w.Err(); err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("frames       %d\n", *frames)
	fmt.Printf("elapsed      %s (%s/frame)\n", elapsed, elapsed/time.Duration(*frames))
	fmt.Printf("live         %d (peak %d)\n", w.Len(), peak)
	fmt.Printf("chunks       %d owned, %d in use, %d bytes each\n", w.Chunks().Owned(), w.Chunks().InUse(), w.Chunks().Size())
	return nil
}
