package repository

import (
	"beveragedetect/internal/dto"
	"beveragedetect/internal/model"
)

// RunRepository defines the interface for run history operations.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run, detections []model.Detection) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Run, error)
	GetByUUID(uuid string) (*model.Run, error)
	GetAll(filter *dto.RunFilters) ([]model.Run, error)
	GetTotalCount(filter *dto.RunFilters) (int, error)
	GetStats() (*model.RunStats, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Read operations
	GetByRunID(runID int64) ([]model.Detection, error)
	GetClassNamesByRunID(runID int64) ([]string, error)
	GetAllClassNames() ([]string, error)

	// Delete operations
	DeleteByRunID(runID int64) error
}
