package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	persistlog "railtycoon.ai/internal/persistence/log"
	"railtycoon.ai/internal/sim/command"
	"railtycoon.ai/internal/sim/tuning"
	"railtycoon.ai/internal/sim/world"
)

// Replays a command journal into a fresh world and checks the recorded
// digests. A divergence means a handler broke determinism (or the journal
// ran under a different tuning); the first failing tick localises it.
func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory holding the journal")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		verbose    = flag.Bool("v", false, "log every replayed command")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	entries, err := persistlog.ReadJournal(*dataDir)
	if err != nil {
		logger.Fatalf("read journal: %v", err)
	}
	if len(entries) == 0 {
		logger.Fatalf("journal is empty")
	}

	w, err := world.New(tune, command.NetServer, logger)
	if err != nil {
		logger.Fatalf("create world: %v", err)
	}

	var commands, digests, mismatches int
	for _, e := range entries {
		for w.Tick() < e.Tick {
			w.StepOnce()
		}
		switch e.Kind {
		case world.JournalKindCommand:
			res, err := w.ReplayEntry(e)
			if err != nil {
				logger.Fatalf("tick %d: replay %s: %v", e.Tick, command.GetName(command.ID(e.Cmd)), err)
			}
			commands++
			if *verbose {
				logger.Printf("tick %d %s: %s", e.Tick, command.GetName(command.ID(e.Cmd)), res.Summary())
			}
			if res.Succeeded() != e.OK || int64(res.GetCost()) != e.Cost {
				mismatches++
				logger.Printf("OUTCOME DIVERGED tick=%d cmd=%s recorded ok=%v cost=%d, replayed %s",
					e.Tick, command.GetName(command.ID(e.Cmd)), e.OK, e.Cost, res.Summary())
			}
		case world.JournalKindDigest:
			digests++
			if got := w.StateDigest(); got != e.Digest {
				mismatches++
				logger.Printf("DIGEST DIVERGED tick=%d recorded=%s replayed=%s", e.Tick, e.Digest, got)
			}
		}
	}

	logger.Printf("replayed %d commands, checked %d digests, final tick %d", commands, digests, w.Tick())
	if mismatches > 0 {
		logger.Printf("%d divergence(s) found", mismatches)
		os.Exit(1)
	}
	logger.Printf("journal is deterministic")
}
