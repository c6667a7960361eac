package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/umbra/internal/interfaces"
	"github.com/ternarybob/umbra/internal/models"
)

// AlertStorage implements interfaces.AlertStorage on the alerts table
type AlertStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewAlertStorage creates an alert storage instance
func NewAlertStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.AlertStorage {
	return &AlertStorage{db: db, logger: logger}
}

// SaveAlert inserts a raised alert. Alert ids are unique; saving the same
// id twice is an error.
func (a *AlertStorage) SaveAlert(alert *models.Alert) error {
	if alert == nil || alert.ID == "" {
		return fmt.Errorf("alert requires an id")
	}
	if !alert.Severity.Valid() {
		return fmt.Errorf("unknown severity %q", alert.Severity)
	}

	entities, err := marshalField(alert.Entities, len(alert.Entities) == 0)
	if err != nil {
		return err
	}
	metadata, err := marshalField(alert.Metadata, len(alert.Metadata) == 0)
	if err != nil {
		return err
	}

	var ackAt sql.NullInt64
	if alert.AcknowledgedAt != nil {
		ackAt = sql.NullInt64{Int64: alert.AcknowledgedAt.Unix(), Valid: true}
	}

	_, err = a.db.db.Exec(`
		INSERT INTO alerts (
			alert_id, type, severity, title, message, domain, url,
			entities, metadata, read, ack_by, ack_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID,
		alert.Trigger,
		string(alert.Severity),
		alert.Title,
		alert.Description,
		alert.Domain,
		alert.URL,
		entities,
		metadata,
		boolToInt(alert.Acknowledged),
		alert.AcknowledgedBy,
		ackAt,
		alert.Timestamp.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// ListAlerts returns alerts newest first, optionally filtered by severity
// and read state.
func (a *AlertStorage) ListAlerts(severity string, unreadOnly bool, limit int) ([]*models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT alert_id, type, severity, title, message, domain, url,
			entities, metadata, read, ack_by, ack_at, created_at
		FROM alerts`
	var conditions []string
	var args []interface{}

	if severity != "" {
		conditions = append(conditions, "severity = ?")
		args = append(args, severity)
	}
	if unreadOnly {
		conditions = append(conditions, "read = 0")
	}
	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := a.db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// MarkAlertRead marks one alert read by its alert id
func (a *AlertStorage) MarkAlertRead(alertID string) error {
	result, err := a.db.db.Exec(`
		UPDATE alerts SET read = 1, ack_at = ?
		WHERE alert_id = ? AND read = 0`,
		time.Now().Unix(), alertID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("no unread alert %s", alertID)
	}
	return nil
}

// CountUnread returns the number of unread alerts
func (a *AlertStorage) CountUnread() (int, error) {
	var count int
	err := a.db.db.QueryRow(`SELECT COUNT(*) FROM alerts WHERE read = 0`).Scan(&count)
	return count, err
}

func scanAlert(scan func(dest ...interface{}) error) (*models.Alert, error) {
	var alert models.Alert
	var severity string
	var message, domain, url, ackBy sql.NullString
	var entities, metadata sql.NullString
	var read int
	var ackAt sql.NullInt64
	var createdAt int64

	err := scan(
		&alert.ID,
		&alert.Trigger,
		&severity,
		&alert.Title,
		&message,
		&domain,
		&url,
		&entities,
		&metadata,
		&read,
		&ackBy,
		&ackAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	alert.Severity = models.AlertSeverity(severity)
	alert.Description = message.String
	alert.Domain = domain.String
	alert.URL = url.String
	alert.Acknowledged = read != 0
	alert.AcknowledgedBy = ackBy.String
	alert.Timestamp = time.Unix(createdAt, 0)
	if ackAt.Valid {
		t := time.Unix(ackAt.Int64, 0)
		alert.AcknowledgedAt = &t
	}

	if entities.Valid && entities.String != "" {
		if err := json.Unmarshal([]byte(entities.String), &alert.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert entities: %w", err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &alert.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert metadata: %w", err)
		}
	}
	return &alert, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
