// Package store persists cross-reference runs to SQLite so consumers can
// query "who calls X" across runs without re-analyzing the tree.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/whharris917/atlas-sub000/internal/analysis"
	"github.com/whharris917/atlas-sub000/internal/catalog"
)

const sqliteDriverName = "sqlite"

// timestampFormat keeps fractional seconds fixed-width so string order in
// SQL matches time order.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Usage buckets recorded in the xrefs table.
const (
	BucketCall          = "call"
	BucketInstantiation = "instantiation"
	BucketState         = "state"
	BucketEmit          = "emit"
)

type Store struct {
	db         *sql.DB
	projectKey string
	usersStmt  *sql.Stmt
}

type XrefRecord struct {
	RunID    string
	Module   string
	Function string
	Bucket   string
	Target   string
}

// Open opens (creating if needed) the store at path. Runs for different
// projects share one database, partitioned by projectKey.
func Open(path, projectKey string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping store %q: %w", cleanPath, err)
	}
	if err := migrateSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}

	usersStmt, err := db.Prepare(`SELECT run_id, module, function_fqn, bucket, target
FROM xrefs
WHERE project_key = ? AND run_id = ? AND target = ?
ORDER BY module, function_fqn, bucket`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare users stmt: %w", err)
	}

	return &Store{db: db, projectKey: key, usersStmt: usersStmt}, nil
}

func (s *Store) Close() error {
	if s.usersStmt != nil {
		_ = s.usersStmt.Close()
	}
	return s.db.Close()
}

// SaveRun records one complete analysis run: the cataloged symbols and
// every classified usage, under a fresh run id. The previous run for the
// same project key is kept; callers prune with DeleteRunsBefore.
func (s *Store) SaveRun(cat *catalog.Catalog, reports []*analysis.ModuleReport) (string, error) {
	runID := uuid.NewString()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO runs (run_id, project_key, created_at, modules, functions) VALUES (?, ?, ?, ?, ?)`,
		runID, s.projectKey, time.Now().UTC().Format(timestampFormat), len(reports), countFunctions(reports)); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	symStmt, err := tx.Prepare(`INSERT INTO symbols (project_key, run_id, fqn, kind, type_hint) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare symbol insert: %w", err)
	}
	defer symStmt.Close()

	insertSym := func(fqn, kind, typeHint string) error {
		_, err := symStmt.Exec(s.projectKey, runID, fqn, kind, typeHint)
		return err
	}
	for fqn := range cat.Classes {
		if err := insertSym(fqn, "class", ""); err != nil {
			return "", fmt.Errorf("insert class %q: %w", fqn, err)
		}
	}
	for fqn, entry := range cat.Functions {
		if err := insertSym(fqn, "function", entry.Return.Value); err != nil {
			return "", fmt.Errorf("insert function %q: %w", fqn, err)
		}
	}
	for fqn, entry := range cat.State {
		if err := insertSym(fqn, "state", entry.Type.Value); err != nil {
			return "", fmt.Errorf("insert state %q: %w", fqn, err)
		}
	}

	xrefStmt, err := tx.Prepare(`INSERT INTO xrefs (project_key, run_id, module, function_fqn, bucket, target) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare xref insert: %w", err)
	}
	defer xrefStmt.Close()

	for _, report := range reports {
		record := func(fn analysis.FunctionReport, owner string) error {
			fqn := owner + "." + fn.Name
			for _, target := range fn.Calls {
				if _, err := xrefStmt.Exec(s.projectKey, runID, report.Module, fqn, BucketCall, target); err != nil {
					return err
				}
			}
			for _, target := range fn.Instantiations {
				if _, err := xrefStmt.Exec(s.projectKey, runID, report.Module, fqn, BucketInstantiation, target); err != nil {
					return err
				}
			}
			for _, target := range fn.AccessedState {
				if _, err := xrefStmt.Exec(s.projectKey, runID, report.Module, fqn, BucketState, target); err != nil {
					return err
				}
			}
			for _, target := range fn.Emits {
				if _, err := xrefStmt.Exec(s.projectKey, runID, report.Module, fqn, BucketEmit, target); err != nil {
					return err
				}
			}
			return nil
		}
		for _, fn := range report.Functions {
			if err := record(fn, report.Module); err != nil {
				return "", fmt.Errorf("insert xrefs for %s: %w", report.Module, err)
			}
		}
		for _, class := range report.Classes {
			for _, method := range class.Methods {
				if err := record(method, report.Module+"."+class.Name); err != nil {
					return "", fmt.Errorf("insert xrefs for %s.%s: %w", report.Module, class.Name, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit save run: %w", err)
	}
	return runID, nil
}

// Users returns every recorded usage of target within one run.
func (s *Store) Users(runID, target string) ([]XrefRecord, error) {
	rows, err := s.usersStmt.Query(s.projectKey, runID, target)
	if err != nil {
		return nil, fmt.Errorf("query users of %q: %w", target, err)
	}
	defer rows.Close()

	var out []XrefRecord
	for rows.Next() {
		var rec XrefRecord
		if err := rows.Scan(&rec.RunID, &rec.Module, &rec.Function, &rec.Bucket, &rec.Target); err != nil {
			return nil, fmt.Errorf("scan xref row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestRun returns the most recent run id for the project, or "" when no
// run has been saved yet.
func (s *Store) LatestRun() (string, error) {
	var runID string
	err := s.db.QueryRow(`SELECT run_id FROM runs WHERE project_key = ? ORDER BY created_at DESC LIMIT 1`, s.projectKey).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return runID, nil
}

// DeleteRunsBefore prunes runs older than the cutoff, cascading into their
// symbols and xrefs.
func (s *Store) DeleteRunsBefore(cutoff time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := cutoff.UTC().Format(timestampFormat)
	if _, err := tx.Exec(`DELETE FROM xrefs WHERE project_key = ? AND run_id IN (SELECT run_id FROM runs WHERE project_key = ? AND created_at < ?)`, s.projectKey, s.projectKey, stamp); err != nil {
		return fmt.Errorf("prune xrefs: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE project_key = ? AND run_id IN (SELECT run_id FROM runs WHERE project_key = ? AND created_at < ?)`, s.projectKey, s.projectKey, stamp); err != nil {
		return fmt.Errorf("prune symbols: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE project_key = ? AND created_at < ?`, s.projectKey, stamp); err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	return tx.Commit()
}

func countFunctions(reports []*analysis.ModuleReport) int {
	total := 0
	for _, report := range reports {
		total += len(report.Functions)
		for _, class := range report.Classes {
			total += len(class.Methods)
		}
	}
	return total
}

func migrateSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  project_key TEXT NOT NULL,
  created_at TEXT NOT NULL,
  modules INTEGER NOT NULL,
  functions INTEGER NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS symbols (
  project_key TEXT NOT NULL,
  run_id TEXT NOT NULL,
  fqn TEXT NOT NULL,
  kind TEXT NOT NULL,
  type_hint TEXT NOT NULL DEFAULT ''
)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_lookup ON symbols (project_key, run_id, fqn)`,
		`CREATE TABLE IF NOT EXISTS xrefs (
  project_key TEXT NOT NULL,
  run_id TEXT NOT NULL,
  module TEXT NOT NULL,
  function_fqn TEXT NOT NULL,
  bucket TEXT NOT NULL,
  target TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_xrefs_target ON xrefs (project_key, run_id, target)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate store schema: %w", err)
		}
	}
	return nil
}
