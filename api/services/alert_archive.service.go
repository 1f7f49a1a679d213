package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tourist-overwatch/db"
	"tourist-overwatch/pkg/ontology"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000

	// DefaultArchiveRetention bounds the archive to the newest alerts.
	DefaultArchiveRetention = 10000
)

// AlertArchiveService keeps a durable copy of every alert seen on the alert
// stream. Unlike the live feed it survives a simulation reset.
type AlertArchiveService struct {
	db     *sql.DB
	now    func() time.Time
	retain int
}

func NewAlertArchiveService(conn *sql.DB) *AlertArchiveService {
	return &AlertArchiveService{db: conn, now: time.Now, retain: DefaultArchiveRetention}
}

// Archive stores an alert once; redelivered alerts are ignored. Alerts
// beyond the retention bound are pruned oldest first in the same transaction.
func (s *AlertArchiveService) Archive(alert ontology.SafetyAlert) error {
	err := db.WithTx(context.Background(), s.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO alert_archive
			 (alert_id, alert_type, tourist_id, associated_user, message, latitude, longitude, raised_at, archived_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			alert.AlertID, string(alert.Type), alert.TouristID, alert.AssociatedUser, alert.Message,
			alert.Lat, alert.Lon,
			alert.Timestamp.UnixNano(), s.now().UnixNano(),
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 || s.retain <= 0 {
			return nil
		}

		_, err = tx.Exec(
			`DELETE FROM alert_archive WHERE alert_id NOT IN
			 (SELECT alert_id FROM alert_archive ORDER BY raised_at DESC, rowid DESC LIMIT ?)`,
			s.retain,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive alert %s: %w", alert.AlertID, err)
	}
	return nil
}

// Recent returns archived alerts, newest first.
func (s *AlertArchiveService) Recent(limit int) ([]ontology.SafetyAlert, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := s.db.Query(
		`SELECT alert_id, alert_type, tourist_id, associated_user, message, latitude, longitude, raised_at
		 FROM alert_archive ORDER BY raised_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert archive: %w", err)
	}
	defer rows.Close()

	alerts := []ontology.SafetyAlert{}
	for rows.Next() {
		var alert ontology.SafetyAlert
		var alertType string
		var raisedAt int64
		var lat, lon sql.NullFloat64

		if err := rows.Scan(&alert.AlertID, &alertType, &alert.TouristID, &alert.AssociatedUser,
			&alert.Message, &lat, &lon, &raisedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.Type = ontology.AlertType(alertType)
		alert.Lat = lat.Float64
		alert.Lon = lon.Float64
		alert.Timestamp = time.Unix(0, raisedAt).UTC()
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}
