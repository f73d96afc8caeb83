package sqlite

import (
	"database/sql"
	"fmt"

	"beveragedetect/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// insertDetections adds the detections of runID inside tx.
func insertDetections(tx *sql.Tx, runID int64, detections []model.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO detections (run_id, class_name, x1, y1, x2, y2, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(runID, det.ClassName, det.X1, det.Y1, det.X2, det.Y2, det.Confidence); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	return nil
}

// GetByRunID retrieves all detections of a run in insertion order.
func (r *DetectionRepository) GetByRunID(runID int64) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, run_id, class_name, x1, y1, x2, y2, confidence
		FROM detections WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var detections []model.Detection
	for rows.Next() {
		var det model.Detection
		if err := rows.Scan(&det.ID, &det.RunID, &det.ClassName, &det.X1, &det.Y1, &det.X2, &det.Y2, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// GetClassNamesByRunID returns the distinct class names found in a run.
func (r *DetectionRepository) GetClassNamesByRunID(runID int64) ([]string, error) {
	return r.queryNames(`SELECT DISTINCT class_name FROM detections WHERE run_id = ? ORDER BY class_name`, runID)
}

// GetAllClassNames returns a list of all class names ever detected.
func (r *DetectionRepository) GetAllClassNames() ([]string, error) {
	return r.queryNames(`SELECT DISTINCT class_name FROM detections ORDER BY class_name`)
}

func (r *DetectionRepository) queryNames(query string, args ...interface{}) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query class names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan class name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// DeleteByRunID removes all detections for a specific run.
func (r *DetectionRepository) DeleteByRunID(runID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	return nil
}
