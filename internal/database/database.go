package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/trader"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Service is the append-only journal of refresh cycles. It is an audit trail only; the
// ledger never reloads from it.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	RecordCycle(ctx context.Context, report *trader.Report) error

	// RecentCycles returns up to limit reports, newest first.
	RecentCycles(ctx context.Context, limit int) ([]*trader.Report, error)

	Close() error
}

type service struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id       TEXT PRIMARY KEY,
	pair     TEXT NOT NULL,
	at       INTEGER NOT NULL,
	best_bid TEXT,
	best_ask TEXT
);
CREATE TABLE IF NOT EXISTS cycle_orders (
	cycle_id TEXT NOT NULL REFERENCES cycles(id),
	position INTEGER NOT NULL,
	action   TEXT NOT NULL,
	side     TEXT NOT NULL,
	price    TEXT NOT NULL,
	count    INTEGER NOT NULL,
	amount   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS cycles_at ON cycles(at);
CREATE INDEX IF NOT EXISTS cycle_orders_cycle ON cycle_orders(cycle_id);
`

const (
	actionCancelled = "cancelled"
	actionTaken     = "taken"
	actionPlaced    = "placed"
)

func New(path string) (Service, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; the bot writes from a single goroutine anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &service{db: db, path: path}, nil
}

func (s *service) RecordCycle(ctx context.Context, report *trader.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cycles (id, pair, at, best_bid, best_ask) VALUES (?, ?, ?, ?, ?)`,
		report.ID.String(), report.Pair, report.At.UnixNano(), report.BestBid, report.BestAsk)
	if err != nil {
		return fmt.Errorf("failed to insert cycle %s: %w", report.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cycle_orders (cycle_id, position, action, side, price, count, amount) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	position := 0
	for _, group := range []struct {
		action string
		orders []domain.Order
	}{
		{actionCancelled, report.Cancelled},
		{actionTaken, report.Taken},
		{actionPlaced, report.Placed},
	} {
		for _, order := range group.orders {
			_, err := stmt.ExecContext(ctx, report.ID.String(), position, group.action,
				order.Side.String(), order.Price.String(), order.Count, order.Amount.String())
			if err != nil {
				return fmt.Errorf("failed to insert %s order of cycle %s: %w", group.action, report.ID, err)
			}
			position++
		}
	}

	return tx.Commit()
}

func (s *service) RecentCycles(ctx context.Context, limit int) ([]*trader.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pair, at, best_bid, best_ask FROM cycles ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]*trader.Report, 0, limit)
	byId := make(map[string]*trader.Report, limit)
	for rows.Next() {
		var id string
		var at int64
		report := &trader.Report{}
		if err := rows.Scan(&id, &report.Pair, &at, &report.BestBid, &report.BestAsk); err != nil {
			return nil, err
		}
		if report.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt cycle id %q: %w", id, err)
		}
		report.At = time.Unix(0, at)
		reports = append(reports, report)
		byId[id] = report
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id, report := range byId {
		if err := s.loadOrders(ctx, id, report); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

func (s *service) loadOrders(ctx context.Context, id string, report *trader.Report) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action, side, price, count, amount FROM cycle_orders WHERE cycle_id = ? ORDER BY position`, id)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var action, side string
		var order domain.Order
		if err := rows.Scan(&action, &side, &order.Price, &order.Count, &order.Amount); err != nil {
			return err
		}
		if err := order.Side.UnmarshalText([]byte(side)); err != nil {
			return err
		}

		switch action {
		case actionCancelled:
			report.Cancelled = append(report.Cancelled, order)
		case actionTaken:
			report.Taken = append(report.Taken, order)
		case actionPlaced:
			report.Placed = append(report.Placed, order)
		default:
			return fmt.Errorf("corrupt journal action %q", action)
		}
	}
	return rows.Err()
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	var cycles int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycles`).Scan(&cycles); err == nil {
		stats["cycles"] = strconv.Itoa(cycles)
	}

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)

	return stats
}

func (s *service) Close() error {
	return s.db.Close()
}
