package db

import (
	"database/sql"
	"time"

	"github.com/iotlab/pubsub-ops/internal/update"
)

// Attempt is one recorded update attempt.
type Attempt struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	FromVersion string
	ToVersion   string
	Outcome     string
	Reason      string
	Summary     string
	BackupPath  string
}

// HistoryStore records terminal session outcomes. It implements
// update.Recorder.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a store over an open database connection.
func NewHistoryStore(conn *sql.DB) *HistoryStore {
	return &HistoryStore{db: conn}
}

// Record persists a session result. Called by the coordinator after every
// terminal outcome; this table is the post-mortem evidence for failed fleet
// updates.
func (s *HistoryStore) Record(result update.Result, from string) error {
	_, err := s.db.Exec(
		`INSERT INTO updates (started_at, finished_at, from_version, to_version, outcome, reason, summary, backup_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.StartedAt, result.FinishedAt, from, result.Target.Version.String(),
		string(result.Outcome), string(result.Reason), result.Summary, result.BackupPath)
	return err
}

// List returns recorded attempts, newest first, at most limit rows.
func (s *HistoryStore) List(limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, from_version, to_version, outcome, reason, summary, backup_path
		 FROM updates ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.StartedAt, &a.FinishedAt, &a.FromVersion, &a.ToVersion,
			&a.Outcome, &a.Reason, &a.Summary, &a.BackupPath); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
