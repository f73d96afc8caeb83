package sqlite

import (
	"database/sql"
	"fmt"

	"beveragedetect/internal/dto"
	"beveragedetect/internal/model"
)

const runColumns = `r.id, r.uuid, r.filename, r.timestamp, r.confidence, r.original_path,
	r.annotated_path, r.filesize, r.width, r.height, r.item_count`

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*model.Run, error) {
	var run model.Run
	err := s.Scan(&run.ID, &run.UUID, &run.Filename, &run.Timestamp, &run.Confidence, &run.OriginalPath,
		&run.AnnotatedPath, &run.FileSize, &run.Width, &run.Height, &run.ItemCount)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Insert stores a run and its detections in one transaction. Either both
// land or neither does. It returns the new run ID.
func (r *RunRepository) Insert(run *model.Run, detections []model.Detection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO runs (uuid, filename, timestamp, confidence, original_path, annotated_path, filesize, width, height, item_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.UUID, run.Filename, run.Timestamp, run.Confidence, run.OriginalPath, run.AnnotatedPath,
		run.FileSize, run.Width, run.Height, run.ItemCount)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := insertDetections(tx, runID, detections); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// GetByID retrieves a run by its ID. A missing run yields (nil, nil).
func (r *RunRepository) GetByID(id int64) (*model.Run, error) {
	return r.getOne(`SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
}

// GetByUUID retrieves a run by its public identifier.
func (r *RunRepository) GetByUUID(uuid string) (*model.Run, error) {
	return r.getOne(`SELECT `+runColumns+` FROM runs r WHERE r.uuid = ?`, uuid)
}

func (r *RunRepository) getOne(query string, arg interface{}) (*model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	run, err := scanRun(r.db.Conn().QueryRow(query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// applyFilter appends the WHERE conditions shared by GetAll and GetTotalCount.
func applyFilter(query string, filter *dto.RunFilters) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Class != "" {
		query += " AND EXISTS (SELECT 1 FROM detections d WHERE d.run_id = r.id AND d.class_name = ?)"
		args = append(args, filter.Class)
	}

	if !filter.DateAfter.IsZero() {
		query += " AND DATE(r.timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		query += " AND DATE(r.timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	return query, args
}

// GetAll retrieves runs based on filter criteria, newest first.
func (r *RunRepository) GetAll(filter *dto.RunFilters) ([]model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyFilter(`SELECT `+runColumns+` FROM runs r WHERE 1=1`, filter)
	query += " ORDER BY r.timestamp DESC, r.id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetTotalCount returns the total count of runs matching the filter.
func (r *RunRepository) GetTotalCount(filter *dto.RunFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyFilter(`SELECT COUNT(*) FROM runs r WHERE 1=1`, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return count, nil
}

// GetStats returns statistics about stored runs.
func (r *RunRepository) GetStats() (*model.RunStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.RunStats{
		ClassCounts: make(map[string]int),
	}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(item_count), 0), COALESCE(SUM(filesize), 0) FROM runs
	`).Scan(&stats.TotalRuns, &stats.TotalItems, &stats.TotalSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate runs: %w", err)
	}

	rows, err := r.db.Conn().Query(`
		SELECT class_name, COUNT(*) AS cnt
		FROM detections
		GROUP BY class_name
		ORDER BY cnt DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count classes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, err
		}
		stats.ClassCounts[name] = count
	}

	return stats, rows.Err()
}

// Delete removes a run and its detections.
func (r *RunRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// DeleteAll removes all runs and their detections.
func (r *RunRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}

	return nil
}
