package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/gridbot/internal/domain"
)

// ─── Orders ──────────────────────────────────────────────────────────────────

const orderColumns = `id, level, exchange_order_id, price, side, amount, status, updated_at`

// InsertOrder guarda una orden nueva y devuelve su id.
// La unicidad (level, side, OPEN) la garantiza el llamador con FindOpenOrder.
func (s *SQLiteStorage) InsertOrder(ctx context.Context, o domain.OrderRecord) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	updatedAt, err := formatTime(o.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("storage.InsertOrder: level %d %s: %w", o.Level, o.Side, err)
	}
	status := o.Status
	if status == "" {
		status = domain.StatusOpen
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO grid_orders (level, exchange_order_id, price, side, amount, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.Level, o.ExchangeOrderID, o.Price, string(o.Side), o.Amount, string(status), updatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("storage.InsertOrder: level %d %s: %w", o.Level, o.Side, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage.InsertOrder: last id: %w", err)
	}
	return id, nil
}

// FindOpenOrder busca la orden OPEN de un (level, side). ok=false si no hay ninguna.
func (s *SQLiteStorage) FindOpenOrder(ctx context.Context, level int, side domain.Side) (domain.OrderRecord, bool, error) {
	orders, err := s.queryOrders(ctx, `WHERE level=? AND side=? AND status='OPEN' ORDER BY id LIMIT 1`, level, string(side))
	if err != nil {
		return domain.OrderRecord{}, false, fmt.Errorf("storage.FindOpenOrder: %w", err)
	}
	if len(orders) == 0 {
		return domain.OrderRecord{}, false, nil
	}
	return orders[0], true, nil
}

// OpenOrders devuelve todas las órdenes OPEN por id ascendente.
func (s *SQLiteStorage) OpenOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	orders, err := s.queryOrders(ctx, `WHERE status='OPEN' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage.OpenOrders: %w", err)
	}
	return orders, nil
}

// CountOpenOrders cuenta las órdenes OPEN.
func (s *SQLiteStorage) CountOpenOrders(ctx context.Context) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grid_orders WHERE status='OPEN'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage.CountOpenOrders: %w", err)
	}
	return n, nil
}

// FilledOrders devuelve todas las órdenes FILLED por id ascendente.
func (s *SQLiteStorage) FilledOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	orders, err := s.queryOrders(ctx, `WHERE status='FILLED' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage.FilledOrders: %w", err)
	}
	return orders, nil
}

// RecordFill pasa la orden de OPEN a FILLED y guarda su ejecución en una sola
// transacción. Devuelve la secuencia de la ejecución. Si la orden ya no estaba
// OPEN no escribe nada y devuelve ErrNotOpenOrder.
func (s *SQLiteStorage) RecordFill(ctx context.Context, id int64, e domain.ExecutionRecord) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	filledAt, err := formatTime(e.ExecutedAt)
	if err != nil {
		return 0, fmt.Errorf("storage.RecordFill: id %d: %w", id, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.RecordFill: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE grid_orders SET status='FILLED', updated_at=? WHERE id=? AND status='OPEN'`,
		filledAt, id,
	)
	if err != nil {
		return 0, fmt.Errorf("storage.RecordFill: mark id %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return 0, fmt.Errorf("storage.RecordFill: id %d: %w", id, ErrNotOpenOrder)
	}

	seq, err := insertExecution(ctx, tx, e)
	if err != nil {
		return 0, fmt.Errorf("storage.RecordFill: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.RecordFill: commit: %w", err)
	}
	return seq, nil
}

// DeleteOrder borra una orden (solo la usa la expiración).
func (s *SQLiteStorage) DeleteOrder(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM grid_orders WHERE id=?`, id); err != nil {
		return fmt.Errorf("storage.DeleteOrder: id %d: %w", id, err)
	}
	return nil
}

// StaleOrders devuelve las órdenes OPEN cuyo updated_at es anterior a olderThan.
func (s *SQLiteStorage) StaleOrders(ctx context.Context, olderThan time.Time) ([]domain.OrderRecord, error) {
	cutoff, err := formatTime(olderThan)
	if err != nil {
		return nil, fmt.Errorf("storage.StaleOrders: %w", err)
	}
	orders, err := s.queryOrders(ctx, `WHERE status='OPEN' AND updated_at < ? ORDER BY id`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("storage.StaleOrders: %w", err)
	}
	return orders, nil
}

// OrderPlacedAfter indica si existe alguna orden en (level, side) posterior a afterID.
// La recuperación la usa para saber si una contraorden ya se colocó alguna vez.
func (s *SQLiteStorage) OrderPlacedAfter(ctx context.Context, level int, side domain.Side, afterID int64) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM grid_orders WHERE level=? AND side=? AND id>?`, level, string(side), afterID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("storage.OrderPlacedAfter: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) queryOrders(ctx context.Context, where string, args ...any) ([]domain.OrderRecord, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+orderColumns+` FROM grid_orders `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var orders []domain.OrderRecord
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func scanOrder(rows *sql.Rows) (domain.OrderRecord, error) {
	var o domain.OrderRecord
	var side, status, updatedAt string
	if err := rows.Scan(&o.ID, &o.Level, &o.ExchangeOrderID, &o.Price, &side, &o.Amount, &status, &updatedAt); err != nil {
		return o, err
	}
	o.Side = domain.Side(side)
	o.Status = domain.OrderStatus(status)
	o.UpdatedAt = parseTime(updatedAt)
	return o, nil
}

// ─── Executions ──────────────────────────────────────────────────────────────

// InsertExecution guarda una ejecución suelta y devuelve su secuencia.
// El flujo normal de fills usa RecordFill.
func (s *SQLiteStorage) InsertExecution(ctx context.Context, e domain.ExecutionRecord) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	seq, err := insertExecution(ctx, db, e)
	if err != nil {
		return 0, fmt.Errorf("storage.InsertExecution: %w", err)
	}
	return seq, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExecution(ctx context.Context, db execer, e domain.ExecutionRecord) (int64, error) {
	executedAt, err := formatTime(e.ExecutedAt)
	if err != nil {
		return 0, fmt.Errorf("order %s: %w", e.ExchangeOrderID, err)
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO grid_executions
		  (level, exchange_order_id, side, exec_price, exec_amount, fee, fee_currency, consumed, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Level, e.ExchangeOrderID, string(e.Side), e.ExecPrice, e.ExecAmount, e.Fee, e.FeeCurrency,
		boolToInt(e.Consumed), executedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert execution %s: %w", e.ExchangeOrderID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("execution last id: %w", err)
	}
	return seq, nil
}

// OldestUnconsumedBuy devuelve la ejecución BUY más antigua (FIFO por seq)
// aún no usada como pata de compra en el nivel dado.
func (s *SQLiteStorage) OldestUnconsumedBuy(ctx context.Context, level int) (domain.ExecutionRecord, bool, error) {
	db, err := s.conn()
	if err != nil {
		return domain.ExecutionRecord{}, false, err
	}
	var e domain.ExecutionRecord
	var side, executedAt string
	var consumed int
	err = db.QueryRowContext(ctx, `
		SELECT seq, level, exchange_order_id, side, exec_price, exec_amount, fee, fee_currency, consumed, executed_at
		FROM grid_executions
		WHERE side='BUY' AND level=? AND consumed=0
		ORDER BY seq
		LIMIT 1`, level,
	).Scan(&e.Seq, &e.Level, &e.ExchangeOrderID, &side, &e.ExecPrice, &e.ExecAmount, &e.Fee, &e.FeeCurrency, &consumed, &executedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExecutionRecord{}, false, nil
	}
	if err != nil {
		return domain.ExecutionRecord{}, false, fmt.Errorf("storage.OldestUnconsumedBuy: level %d: %w", level, err)
	}
	e.Side = domain.Side(side)
	e.Consumed = consumed == 1
	e.ExecutedAt = parseTime(executedAt)
	return e, true, nil
}

// ─── Profit ──────────────────────────────────────────────────────────────────

// CloseCycle persiste el ciclo y marca la pata de compra como consumida en una sola transacción.
func (s *SQLiteStorage) CloseCycle(ctx context.Context, c domain.ProfitCycle, buySeq int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	closedAt, err := formatTime(c.Timestamp)
	if err != nil {
		return fmt.Errorf("storage.CloseCycle: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.CloseCycle: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE grid_executions SET consumed=1 WHERE seq=? AND side='BUY' AND consumed=0`, buySeq)
	if err != nil {
		return fmt.Errorf("storage.CloseCycle: consume buy %d: %w", buySeq, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("storage.CloseCycle: buy execution %d not available", buySeq)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profit_cycles
		  (timestamp, buy_price, sell_price, amount, buy_fee, sell_fee, gross_profit, net_profit, sell_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		closedAt, c.BuyPrice, c.SellPrice, c.Amount, c.BuyFee, c.SellFee,
		c.GrossProfit, c.NetProfit, c.SellOrderID,
	); err != nil {
		return fmt.Errorf("storage.CloseCycle: insert cycle: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.CloseCycle: commit: %w", err)
	}
	return nil
}

// InsertLegacyProfit añade una fila al ledger bruto heredado.
func (s *SQLiteStorage) InsertLegacyProfit(ctx context.Context, amount float64, at time.Time) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ts, err := formatTime(at)
	if err != nil {
		return fmt.Errorf("storage.InsertLegacyProfit: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO profits (timestamp, profit_usdt) VALUES (?, ?)`, ts, amount,
	); err != nil {
		return fmt.Errorf("storage.InsertLegacyProfit: %w", err)
	}
	return nil
}

// ProfitCycles devuelve todos los ciclos cerrados por id ascendente.
func (s *SQLiteStorage) ProfitCycles(ctx context.Context) ([]domain.ProfitCycle, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, timestamp, buy_price, sell_price, amount, buy_fee, sell_fee,
		       gross_profit, net_profit, sell_order_id
		FROM profit_cycles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ProfitCycles: query: %w", err)
	}
	defer rows.Close()

	var cycles []domain.ProfitCycle
	for rows.Next() {
		var c domain.ProfitCycle
		var ts string
		if err := rows.Scan(&c.ID, &ts, &c.BuyPrice, &c.SellPrice, &c.Amount, &c.BuyFee, &c.SellFee,
			&c.GrossProfit, &c.NetProfit, &c.SellOrderID); err != nil {
			return nil, fmt.Errorf("storage.ProfitCycles: scan: %w", err)
		}
		c.Timestamp = parseTime(ts)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}
