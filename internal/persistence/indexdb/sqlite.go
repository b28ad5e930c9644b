package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"railtycoon.ai/internal/sim/command"
	"railtycoon.ai/internal/sim/tuning"
	"railtycoon.ai/internal/sim/world"
)

// SQLiteIndex is the queryable secondary index over the command journal.
// The journal files remain the source of truth; the index may lag or drop
// rows under pressure.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqCommand reqKind = iota + 1
	reqDigest
)

type req struct {
	kind reqKind

	cmd    world.JournalEntry
	digest digestRow
}

type digestRow struct {
	Tick   uint64
	Digest string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: bursty ticks (many clients issuing at once) must not
		// stall the sim.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			company INTEGER NOT NULL,
			client INTEGER NOT NULL,
			cmd INTEGER NOT NULL,
			name TEXT NOT NULL,
			tile INTEGER NOT NULL,
			p1 INTEGER NOT NULL,
			p2 INTEGER NOT NULL,
			p3 INTEGER NOT NULL,
			text TEXT,
			ok INTEGER NOT NULL,
			cost INTEGER NOT NULL,
			code TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_company_tick ON commands(company, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_cmd_tick ON commands(cmd, tick);`,
		`CREATE TABLE IF NOT EXISTS digests (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteCommand indexes one executed command. Drops under pressure; the
// journal is the source of truth.
func (s *SQLiteIndex) WriteCommand(e world.JournalEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqCommand, cmd: e}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) WriteDigest(tick uint64, digest string) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqDigest, digest: digestRow{Tick: tick, Digest: digest}}:
	default:
	}
	return nil
}

// UpsertMeta stores the applied tuning (canonical JSON plus digest) so a
// journal can be matched to the config it ran under.
func (s *SQLiteIndex) UpsertMeta(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows := [][2]string{
		{"schema_version", "1"},
		{"tuning", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"started_at", time.Now().UTC().Format(time.RFC3339Nano)},
	}
	for _, r := range rows {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, r[0], r[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DigestAt returns the recorded digest for a tick, or "" when absent.
func (s *SQLiteIndex) DigestAt(tick uint64) (string, error) {
	var d string
	err := s.db.QueryRow(`SELECT digest FROM digests WHERE tick=?`, int64(tick)).Scan(&d)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return d, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertCommand, _ := s.db.Prepare(`INSERT OR REPLACE INTO commands(tick,seq,company,client,cmd,name,tile,p1,p2,p3,text,ok,cost,code,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertDigest, _ := s.db.Prepare(`INSERT OR REPLACE INTO digests(tick,digest) VALUES(?,?)`)
	defer func() {
		if insertCommand != nil {
			_ = insertCommand.Close()
		}
		if insertDigest != nil {
			_ = insertDigest.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastCmdTick uint64
		cmdSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqCommand:
			e := r.cmd
			if e.Tick != lastCmdTick {
				lastCmdTick = e.Tick
				cmdSeq = 0
			}
			seq := cmdSeq
			cmdSeq++
			raw, _ := json.Marshal(e)
			ok := 0
			if e.OK {
				ok = 1
			}
			if insertCommand != nil {
				if _, err := tx.Stmt(insertCommand).Exec(
					int64(e.Tick),
					seq,
					int64(e.Company),
					int64(e.Client),
					int64(e.Cmd),
					command.GetName(command.ID(e.Cmd)),
					int64(e.Tile),
					int64(e.P1),
					int64(e.P2),
					int64(e.P3),
					e.Text,
					ok,
					e.Cost,
					e.Code,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqDigest:
			d := r.digest
			if insertDigest != nil {
				if _, err := tx.Stmt(insertDigest).Exec(int64(d.Tick), d.Digest); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
