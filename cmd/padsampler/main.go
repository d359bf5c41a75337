// Pad Sampler - demo host for the real-time sampler audio engine.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/padsampler/engine/internal/config"
	"github.com/padsampler/engine/internal/engine"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	log.Println("Pad sampler engine starting...")
	log.Printf("channels=%d sample_rate=%d voices=%d pads=%d", cfg.Channels, cfg.SampleRate, cfg.VoicePoolSize, cfg.NumPads)

	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("Failed to construct engine: %v", err)
	}

	if err := eng.Run(); err != nil {
		log.Fatalf("Failed to start audio stream: %v", err)
	}
	defer eng.ShutDown()
	log.Printf("Audio stream running at %d Hz, %d channels", cfg.SampleRate, cfg.Channels)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go pollEvents(ctx, eng)

	if len(os.Args) > 1 {
		if taskID, err := eng.LoadSampleAsync(0, os.Args[len(os.Args)-1], true); err != nil {
			log.Printf("load_sample_async failed: %v", err)
		} else {
			log.Printf("Loading pad 0 from %s (task %s)", os.Args[len(os.Args)-1], taskID)
		}
	}

	<-sigChan
	log.Println("Shutting down...")
}

// pollEvents drains the engine's loader/task event queue on the
// control side; the audio thread is never involved in this loop.
func pollEvents(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				evt, ok := eng.PollEvent()
				if !ok {
					break
				}
				logEvent(evt)
			}
			for {
				if _, ok := eng.PollAudioEvent(); !ok {
					break
				}
			}
		}
	}
}

func logEvent(evt engine.Event) {
	switch evt.Kind {
	case engine.Started:
		log.Printf("pad %d: load started", evt.PadID)
	case engine.Progress:
		log.Printf("pad %d: %s %.0f%%", evt.PadID, evt.Stage, evt.Percent*100)
	case engine.Success:
		log.Printf("pad %d: loaded (%.2fs, cached at %s)", evt.PadID, evt.DurationS, evt.CachedPath)
	case engine.Error:
		log.Printf("pad %d: load failed: %s", evt.PadID, evt.Err)
	case engine.TaskStarted:
		log.Printf("pad %d: analysis started", evt.PadID)
	case engine.TaskProgress:
		log.Printf("pad %d: analyzing %.0f%%", evt.PadID, evt.Percent*100)
	case engine.TaskSuccess:
		if evt.Analysis != nil {
			log.Printf("pad %d: analyzed, bpm=%.1f key=%s", evt.PadID, evt.Analysis.BPM, evt.Analysis.Key)
		}
	case engine.TaskError:
		log.Printf("pad %d: analysis failed: %s", evt.PadID, evt.Err)
	default:
		log.Printf("pad %d: %s", evt.PadID, fmt.Sprint(evt.Kind))
	}
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)
}
