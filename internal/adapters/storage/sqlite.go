package storage

// sqlite.go: ledger del grid en SQLite (pure Go, sin CGo).
//
// Tablas:
//   grid_orders     : una fila por orden colocada en un nivel (OPEN → FILLED)
//   grid_executions : ejecución confirmada de cada orden llena (secuencia FIFO)
//   profit_cycles   : ciclos buy→sell cerrados, con fees (append-only)
//   profits         : ledger bruto heredado, solo para reportes
//
// Los timestamps se guardan como TEXT UTC de ancho fijo para que las
// comparaciones lexicográficas en SQL sean también cronológicas.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotOpen se devuelve al usar un storage ya cerrado.
	ErrNotOpen = errors.New("storage: database not open")
	// ErrZeroTime rechaza escrituras sin timestamp.
	ErrZeroTime = errors.New("storage: zero timestamp")
	// ErrNotOpenOrder indica que la orden ya no estaba OPEN.
	ErrNotOpenOrder = errors.New("storage: order is not open")
)

const gridSchema = `
CREATE TABLE IF NOT EXISTS grid_orders (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    level             INTEGER NOT NULL,
    exchange_order_id TEXT    NOT NULL,
    price             REAL    NOT NULL,
    side              TEXT    NOT NULL,   -- BUY / SELL
    amount            REAL    NOT NULL,
    status            TEXT    NOT NULL DEFAULT 'OPEN',
    updated_at        TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_grid_orders_level  ON grid_orders(level, side, status);
CREATE INDEX IF NOT EXISTS idx_grid_orders_status ON grid_orders(status, updated_at);

CREATE TABLE IF NOT EXISTS grid_executions (
    seq               INTEGER PRIMARY KEY AUTOINCREMENT,
    level             INTEGER NOT NULL,
    exchange_order_id TEXT    NOT NULL,
    side              TEXT    NOT NULL,
    exec_price        REAL    NOT NULL,
    exec_amount       REAL    NOT NULL,
    fee               REAL    NOT NULL DEFAULT 0,
    fee_currency      TEXT    NOT NULL DEFAULT '',
    consumed          INTEGER NOT NULL DEFAULT 0,
    executed_at       TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_grid_exec_buy ON grid_executions(side, level, consumed, seq);

CREATE TABLE IF NOT EXISTS profit_cycles (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     TEXT NOT NULL,
    buy_price     REAL NOT NULL,
    sell_price    REAL NOT NULL,
    amount        REAL NOT NULL,
    buy_fee       REAL NOT NULL DEFAULT 0,
    sell_fee      REAL NOT NULL DEFAULT 0,
    gross_profit  REAL NOT NULL,
    net_profit    REAL NOT NULL,
    sell_order_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS profits (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp     TEXT NOT NULL,
    profit_usdt REAL NOT NULL
);
`

// timeLayout es fijo (microsegundos, Z) para ordenar como texto.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteStorage implementa ports.Ledger usando SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema del grid.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db}
	if err := s.ApplyGridSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: %w", err)
	}
	return s, nil
}

// ApplyGridSchema crea las tablas del grid si no existen. Idempotente.
func (s *SQLiteStorage) ApplyGridSchema(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, gridSchema); err != nil {
		return fmt.Errorf("storage.ApplyGridSchema: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStorage) conn() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpen
	}
	return s.db, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// formatTime serializa t en UTC. Un tiempo cero es un error del llamador.
func formatTime(t time.Time) (string, error) {
	if t.IsZero() {
		return "", ErrZeroTime
	}
	return t.UTC().Format(timeLayout), nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
