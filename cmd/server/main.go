package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "railtycoon.ai/internal/persistence/log"
	"railtycoon.ai/internal/persistence/indexdb"
	"railtycoon.ai/internal/sim/command"
	"railtycoon.ai/internal/sim/tuning"
	"railtycoon.ai/internal/sim/world"
	"railtycoon.ai/internal/transport/ws"
)

// journalFanout feeds the journal files and the queryable index from the
// same stream. The files are the source of truth; the index may drop rows.
type journalFanout struct {
	jw  *persistlog.JournalWriter
	idx *indexdb.SQLiteIndex
}

func (f *journalFanout) Append(e world.JournalEntry) {
	if f.jw != nil {
		f.jw.Append(e)
	}
	if f.idx != nil {
		if e.Kind == world.JournalKindDigest {
			_ = f.idx.WriteDigest(e.Tick, e.Digest)
		} else {
			_ = f.idx.WriteCommand(e)
		}
	}
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		netMode    = flag.String("mode", "server", "net mode: server or single")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite command index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	mode := command.NetServer
	switch *netMode {
	case "server":
	case "single":
		mode = command.NetSingle
	default:
		logger.Fatalf("bad -mode %q (want server or single)", *netMode)
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	w, err := world.New(tune, mode, logger)
	if err != nil {
		logger.Fatalf("create world: %v", err)
	}

	fan := &journalFanout{jw: persistlog.NewJournalWriter(*dataDir)}
	defer fan.jw.Close()
	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertMeta(tune); err != nil {
			logger.Printf("index meta: %v", err)
		}
		fan.idx = idx
	}
	w.SetJournal(fan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world loop: %v", err)
		}
	}()

	wsrv := ws.NewServer(w, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsrv.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/diag", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(w.Diagnose())
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (mode=%s tick=%dHz map=%dx%d)", *addr, mode, tune.TickRateHz, tune.MapWidth, tune.MapHeight)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Printf("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	w.Stop()
}
