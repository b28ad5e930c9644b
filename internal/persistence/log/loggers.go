package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"railtycoon.ai/internal/sim/world"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// JournalWriter persists the command journal as compressed JSONL, one file
// per hour. Appends are decoupled from disk by a writer goroutine so the
// world loop never blocks on IO; when the buffer is full, entries are
// dropped and counted rather than stalling the tick.
type JournalWriter struct {
	w    *JSONLZstdWriter
	ch   chan world.JournalEntry
	done chan struct{}

	dropped atomic.Uint64
}

func NewJournalWriter(dataDir string) *JournalWriter {
	jw := &JournalWriter{
		w:    NewJSONLZstdWriter(filepath.Join(dataDir, "journal"), "journal"),
		ch:   make(chan world.JournalEntry, 4096),
		done: make(chan struct{}),
	}
	go jw.loop()
	return jw
}

func (jw *JournalWriter) Append(e world.JournalEntry) {
	select {
	case jw.ch <- e:
	default:
		jw.dropped.Add(1)
	}
}

func (jw *JournalWriter) Dropped() uint64 { return jw.dropped.Load() }

func (jw *JournalWriter) loop() {
	for e := range jw.ch {
		_ = jw.w.Write(e)
	}
	close(jw.done)
}

// Close drains what is buffered and closes the current file.
func (jw *JournalWriter) Close() error {
	close(jw.ch)
	<-jw.done
	return jw.w.Close()
}

// ReadJournal loads every journal record under dataDir in write order.
// Hourly files sort lexicographically by name, entries within a file are
// already ordered.
func ReadJournal(dataDir string) ([]world.JournalEntry, error) {
	dir := filepath.Join(dataDir, "journal")
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".jsonl.zst") {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	var out []world.JournalEntry
	for _, name := range names {
		entries, err := readJournalFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("journal %s: %w", name, err)
		}
		out = append(out, entries...)
	}
	return out, nil
}

func readJournalFile(path string) ([]world.JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []world.JournalEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e world.JournalEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
