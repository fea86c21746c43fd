package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yunmindata/dedupe/internal/events"
)

// Record stores one engine event. SQLiteStorage satisfies events.Sink,
// so a live engine can stream its events straight into the history.
func (s *SQLiteStorage) Record(ctx context.Context, event *events.Event) error {
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
		INSERT INTO run_events (id, run_id, type, severity, timestamp, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.RunID,
		event.Type,
		event.Severity,
		event.Timestamp,
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store event (type=%s, run=%s): %w", event.Type, event.RunID, err)
	}
	return nil
}

// GetRunEvents returns a run's events in emission order.
func (s *SQLiteStorage) GetRunEvents(ctx context.Context, runID string) ([]*events.Event, error) {
	query := `
		SELECT id, run_id, type, severity, timestamp, message, data
		FROM run_events
		WHERE run_id = ?
		ORDER BY timestamp ASC, rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for run %s: %w", runID, err)
	}
	defer rows.Close()

	var result []*events.Event
	for rows.Next() {
		var event events.Event
		var dataJSON string
		var timestamp time.Time

		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Type,
			&event.Severity,
			&timestamp,
			&event.Message,
			&dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Timestamp = timestamp

		if dataJSON != "" && dataJSON != "{}" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}
		result = append(result, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return result, nil
}
