package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// CompletedItems returns the distinct items of itemType that have ever
// recorded event, sorted.
func (l *Ledger) CompletedItems(ctx context.Context, itemType, event string) ([]string, error) {
	if l == nil {
		return nil, nil
	}
	query := `
		SELECT DISTINCT item
		FROM fsn_event_log
		WHERE item_type = ? AND event = ?;
	`
	rows, err := l.db.QueryContext(ctx, query, itemType, event)
	if err != nil {
		return nil, fmt.Errorf("query completed %s items: %w", itemType, err)
	}
	defer rows.Close()

	var items []string
	var scanErrors error
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			scanErrors = errors.Join(scanErrors, fmt.Errorf("scan completed item: %w", err))
			continue
		}
		if item != "" {
			items = append(items, item)
		}
	}
	if err := rows.Err(); err != nil {
		scanErrors = errors.Join(scanErrors, fmt.Errorf("iterate completed items: %w", err))
	}
	sort.Strings(items)
	return items, scanErrors
}

// CompletedPeriods lists the periods ("2019q3") whose archive was fully
// extracted by any run.
func (l *Ledger) CompletedPeriods(ctx context.Context) ([]string, error) {
	periods, err := l.CompletedItems(ctx, ItemTypeArchive, EventPeriodComplete)
	if err != nil {
		return periods, err
	}
	if l != nil {
		l.logger.Debug("Found completed periods in ledger.", slog.Int("count", len(periods)))
	}
	return periods, nil
}
