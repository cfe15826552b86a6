// Package storage provides SQLite-backed persistence for fetched deals and snapshot history.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db           *sql.DB
	maxSnapshots int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/eaanalyzer/data.db.
func New(maxSnapshots int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "eaanalyzer", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxSnapshots: maxSnapshots}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS deals (
			ticket      INTEGER PRIMARY KEY,
			time        INTEGER NOT NULL,
			tz_offset   INTEGER NOT NULL,
			type        INTEGER NOT NULL,
			volume      REAL NOT NULL,
			price       REAL NOT NULL,
			net_profit  REAL NOT NULL,
			commission  REAL NOT NULL,
			swap        REAL NOT NULL,
			symbol      TEXT NOT NULL,
			ea_id       TEXT NOT NULL,
			fetched_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deals_time ON deals(time)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id              TEXT PRIMARY KEY,
			computed_at     INTEGER NOT NULL,
			trigger_kind    TEXT NOT NULL,
			date_from       INTEGER NOT NULL,
			date_to         INTEGER NOT NULL,
			deals_fetched   INTEGER NOT NULL,
			total_trades    INTEGER NOT NULL,
			net_profit      REAL NOT NULL,
			profit_factor   REAL NOT NULL,
			win_rate        REAL NOT NULL,
			max_win_streak  INTEGER NOT NULL,
			max_loss_streak INTEGER NOT NULL,
			top_ea          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_computed_at ON snapshots(computed_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertDeals stores deals keyed by ticket, replacing earlier copies.
func (s *Storage) UpsertDeals(deals []models.Deal) error {
	if len(deals) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO deals
			(ticket, time, tz_offset, type, volume, price, net_profit, commission, swap,
			 symbol, ea_id, fetched_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare deal insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for i := range deals {
		d := &deals[i]
		if err := d.Validate(); err != nil {
			return fmt.Errorf("invalid deal %d: %w", d.Ticket, err)
		}
		_, offset := d.Time.Zone()
		if _, err := stmt.Exec(
			d.Ticket, d.Time.UnixNano(), offset, int(d.Type), d.Volume, d.Price,
			d.NetProfit, d.Commission, d.Swap, d.Symbol, d.EAID, now,
		); err != nil {
			return fmt.Errorf("failed to insert deal %d: %w", d.Ticket, err)
		}
	}

	return tx.Commit()
}

// LoadDeals returns stored deals with from <= time <= to, ordered by time then ticket.
// Each deal keeps the UTC offset it was stored with.
func (s *Storage) LoadDeals(from, to time.Time) ([]models.Deal, error) {
	rows, err := s.db.Query(`
		SELECT ticket, time, tz_offset, type, volume, price, net_profit, commission, swap, symbol, ea_id
		FROM deals WHERE time >= ? AND time <= ?
		ORDER BY time, ticket`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query deals: %w", err)
	}
	defer rows.Close()

	deals := []models.Deal{}
	for rows.Next() {
		var d models.Deal
		var timeNano int64
		var offset, typ int
		if err := rows.Scan(
			&d.Ticket, &timeNano, &offset, &typ, &d.Volume, &d.Price,
			&d.NetProfit, &d.Commission, &d.Swap, &d.Symbol, &d.EAID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deal: %w", err)
		}
		d.Type = models.TradeType(typ)
		d.Time = time.Unix(0, timeNano).In(time.FixedZone("", offset))
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// AddSnapshot records a snapshot summary and keeps at most maxSnapshots rows.
// An empty ID is filled with a new UUID.
func (s *Storage) AddSnapshot(sum *models.SnapshotSummary) error {
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO snapshots
			(id, computed_at, trigger_kind, date_from, date_to, deals_fetched, total_trades,
			 net_profit, profit_factor, win_rate, max_win_streak, max_loss_streak, top_ea)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sum.ID, sum.ComputedAt.UnixNano(), sum.Trigger,
		sum.DateFrom.UnixNano(), sum.DateTo.UnixNano(),
		sum.DealsFetched, sum.TotalTrades, sum.NetProfit, sum.ProfitFactor, sum.WinRate,
		sum.MaxWinStreak, sum.MaxLossStreak, sum.TopEA,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := rotateSnapshots(tx, s.maxSnapshots); err != nil {
		return err
	}

	return tx.Commit()
}

// RecentSnapshots returns up to k summaries, newest first.
func (s *Storage) RecentSnapshots(k int) ([]models.SnapshotSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, computed_at, trigger_kind, date_from, date_to, deals_fetched, total_trades,
		       net_profit, profit_factor, win_rate, max_win_streak, max_loss_streak, top_ea
		FROM snapshots ORDER BY computed_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	summaries := []models.SnapshotSummary{}
	for rows.Next() {
		var sum models.SnapshotSummary
		var computedAt, dateFrom, dateTo int64
		var topEA sql.NullString
		if err := rows.Scan(
			&sum.ID, &computedAt, &sum.Trigger, &dateFrom, &dateTo, &sum.DealsFetched,
			&sum.TotalTrades, &sum.NetProfit, &sum.ProfitFactor, &sum.WinRate,
			&sum.MaxWinStreak, &sum.MaxLossStreak, &topEA,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		sum.ComputedAt = time.Unix(0, computedAt)
		sum.DateFrom = time.Unix(0, dateFrom)
		sum.DateTo = time.Unix(0, dateTo)
		sum.TopEA = topEA.String
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// RotateSnapshots keeps at most maxSnapshots newest summaries by computed_at.
func (s *Storage) RotateSnapshots() error {
	return rotateSnapshots(s.db, s.maxSnapshots)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func rotateSnapshots(e execer, limit int) error {
	_, err := e.Exec(`
		DELETE FROM snapshots WHERE id NOT IN (
			SELECT id FROM snapshots ORDER BY computed_at DESC LIMIT ?
		)`, limit)
	if err != nil {
		return fmt.Errorf("failed to rotate snapshots: %w", err)
	}
	return nil
}
