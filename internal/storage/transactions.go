package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bilancio/internal/core"
)

// Expenses returns the union of both transaction tables, excluding the given
// categories, optionally windowed to [start, end). A zero Date leaves that
// bound open. Amounts cross the boundary through core.SpentFromStored once,
// here, during the scan.
func (s *Store) Expenses(ctx context.Context, start, end core.Date, excluded []string) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, kind := range []core.SourceKind{core.SourceCard, core.SourceBank} {
		rows, err := s.queryTransactions(ctx, kind, start, end, "", excluded)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// ExpensesForCategory returns every transaction tagged with the given
// category across both tables, with no date window. Used for project scopes.
func (s *Store) ExpensesForCategory(ctx context.Context, category string) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, kind := range []core.SourceKind{core.SourceCard, core.SourceBank} {
		rows, err := s.queryTransactions(ctx, kind, core.Date{}, core.Date{}, category, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (s *Store) queryTransactions(ctx context.Context, kind core.SourceKind, start, end core.Date, category string, excluded []string) ([]core.Transaction, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("query transactions: unknown source kind %q", kind)
	}

	query := `SELECT id, date, account_number, account_name, provider, description, amount, status, type, category, tag FROM ` + kind.Table() + ` WHERE 1=1`
	var args []any
	if !start.IsZero() {
		query += ` AND date >= ?`
		args = append(args, start.ISO())
	}
	if !end.IsZero() {
		query += ` AND date < ?`
		args = append(args, end.ISO())
	}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if len(excluded) > 0 {
		placeholders := make([]string, len(excluded))
		for i, c := range excluded {
			placeholders[i] = "?"
			args = append(args, c)
		}
		query += ` AND (category IS NULL OR category NOT IN (` + strings.Join(placeholders, ",") + `))`
	}
	query += ` ORDER BY date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMissingTable(err) {
			slog.DebugContext(ctx, "Transaction table missing, treating as empty", "table", kind.Table())
			return nil, nil
		}
		return nil, fmt.Errorf("query %s: %w", kind.Table(), err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			txn        core.Transaction
			dateISO    string
			amount     float64
			cat, tagNS sql.NullString
		)
		if err := rows.Scan(&txn.ID, &dateISO, &txn.AccountNumber, &txn.AccountName, &txn.Provider, &txn.Description, &amount, &txn.Status, &txn.Type, &cat, &tagNS); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind.Table(), err)
		}
		date, err := core.ParseDate(dateISO)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind.Table(), err)
		}
		txn.Date = date
		txn.Spent = core.SpentFromStored(amount)
		txn.Category = cat.String
		txn.Tag = tagNS.String
		txn.Source = kind
		out = append(out, txn)
	}
	return out, rows.Err()
}

// InsertTransactions writes scraped rows into the table of their source kind.
// Only the pull path calls this; the budget engine never mutates transactions.
func (s *Store) InsertTransactions(ctx context.Context, txns []core.Transaction) (int, error) {
	inserted := 0
	for _, txn := range txns {
		if !txn.Source.IsValid() {
			return inserted, fmt.Errorf("insert transaction: unknown source kind %q", txn.Source)
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO `+txn.Source.Table()+` (date, account_number, account_name, provider, description, amount, status, type, category, tag)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.Date.ISO(), txn.AccountNumber, txn.AccountName, txn.Provider, txn.Description,
			core.StoredFromSpent(txn.Spent), txn.Status, txn.Type,
			nullable(txn.Category), nullable(txn.Tag))
		if err != nil {
			return inserted, fmt.Errorf("insert into %s: %w", txn.Source.Table(), err)
		}
		inserted++
	}

	slog.InfoContext(ctx, "Transactions inserted", "count", inserted)
	return inserted, nil
}

// DefaultWindowStart returns the earliest transaction date across both
// tables, falling back to one year ago on a fresh install.
func (s *Store) DefaultWindowStart(ctx context.Context) core.Date {
	fallback := core.Date{Time: time.Now().UTC().AddDate(-1, 0, 0)}
	earliest := core.Date{}
	for _, kind := range []core.SourceKind{core.SourceCard, core.SourceBank} {
		var minISO sql.NullString
		err := s.db.QueryRowContext(ctx, `SELECT MIN(date) FROM `+kind.Table()).Scan(&minISO)
		if err != nil || !minISO.Valid {
			continue
		}
		d, err := core.ParseDate(minISO.String)
		if err != nil {
			continue
		}
		if earliest.IsZero() || d.Before(earliest.Time) {
			earliest = d
		}
	}
	if earliest.IsZero() {
		return fallback
	}
	return earliest
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
