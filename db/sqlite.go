package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrDisabled is returned when a command needs the database but no path is configured.
var ErrDisabled = errors.New("database not configured")

// Store keeps the training log and batch scan results in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrDisabled
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	if err := createTables(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: database}, nil
}

func createTables(database *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        dataset_path TEXT NOT NULL,
        model_path TEXT NOT NULL,
        features TEXT NOT NULL,
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at DATETIME,
        data_points INTEGER
    );
    CREATE TABLE IF NOT EXISTS scan_results (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        features TEXT NOT NULL,
        predicted_label INTEGER NOT NULL,
        probability REAL,
        scanned_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_scan_results_label ON scan_results (predicted_label, scanned_at);
    `
	_, err := database.Exec(query)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

type TrainingLog struct {
	ModelName   string    `json:"model_name"`
	DatasetPath string    `json:"dataset_path"`
	ModelPath   string    `json:"model_path"`
	Features    []string  `json:"features"`
	Accuracy    float64   `json:"accuracy"`
	Precision   float64   `json:"precision"`
	Recall      float64   `json:"recall"`
	TrainedAt   time.Time `json:"trained_at"`
	DataPoints  int       `json:"data_points"`
}

func (s *Store) SaveTrainingLog(ctx context.Context, entry TrainingLog) error {
	features, err := json.Marshal(entry.Features)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO training_log (
            model_name, dataset_path, model_path, features,
            accuracy, precision, recall, trained_at, data_points
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		entry.ModelName,
		entry.DatasetPath,
		entry.ModelPath,
		string(features),
		entry.Accuracy,
		entry.Precision,
		entry.Recall,
		entry.TrainedAt.UTC(),
		entry.DataPoints,
	)
	return err
}

// LoadTrainingLog returns the most recent entries first. limit <= 0 returns all.
func (s *Store) LoadTrainingLog(ctx context.Context, limit int) ([]TrainingLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, dataset_path, model_path, features,
               accuracy, precision, recall, trained_at, data_points
        FROM training_log
        ORDER BY id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		var features string
		if err := rows.Scan(&log.ModelName, &log.DatasetPath, &log.ModelPath, &features,
			&log.Accuracy, &log.Precision, &log.Recall, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &log.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

type ScanResult struct {
	UserID      string    `json:"user_id"`
	Features    []float64 `json:"features"`
	Label       int       `json:"label"`
	Probability float64   `json:"probability"`
	ScannedAt   time.Time `json:"scanned_at"`
}

func (s *Store) SaveScanResults(ctx context.Context, results []ScanResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO scan_results (user_id, features, predicted_label, probability, scanned_at)
        VALUES (?, ?, ?, ?, ?)
    `)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, result := range results {
		features, err := json.Marshal(result.Features)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, result.UserID, string(features), result.Label, result.Probability, result.ScannedAt.UTC()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadSuspects returns users whose latest scan flagged them as scalpers,
// most recent scan first.
func (s *Store) LoadSuspects(ctx context.Context, limit int) ([]ScanResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT r.user_id, r.features, r.predicted_label, r.probability, r.scanned_at
        FROM scan_results r
        JOIN (
            SELECT user_id, MAX(id) AS id
            FROM scan_results
            GROUP BY user_id
        ) latest ON latest.id = r.id
        WHERE r.predicted_label = 1
        ORDER BY r.id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]ScanResult, 0)
	for rows.Next() {
		var result ScanResult
		var features string
		if err := rows.Scan(&result.UserID, &features, &result.Label, &result.Probability, &result.ScannedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &result.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
