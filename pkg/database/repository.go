package database

import (
	"time"

	"gorm.io/gorm"
)

// DecodeRepository handles decode record database operations
type DecodeRepository struct {
	db *gorm.DB
}

// NewDecodeRepository creates a new decode repository
func NewDecodeRepository(db *gorm.DB) *DecodeRepository {
	return &DecodeRepository{db: db}
}

// Create adds a new decode record
func (r *DecodeRepository) Create(rec *DecodeRecord) error {
	return r.db.Create(rec).Error
}

// GetRecent retrieves the most recent N decodes
func (r *DecodeRepository) GetRecent(limit int) ([]DecodeRecord, error) {
	var decodes []DecodeRecord
	err := r.db.Order("decoded_at DESC").Limit(limit).Find(&decodes).Error
	return decodes, err
}

// GetRecentPaginated retrieves decodes with pagination
func (r *DecodeRepository) GetRecentPaginated(page, perPage int) ([]DecodeRecord, int64, error) {
	var decodes []DecodeRecord
	var total int64

	// Count total records
	if err := r.db.Model(&DecodeRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated results
	offset := (page - 1) * perPage
	err := r.db.Order("decoded_at DESC").
		Offset(offset).
		Limit(perPage).
		Find(&decodes).Error

	return decodes, total, err
}

// GetMatched retrieves recent decodes that matched the configured code
func (r *DecodeRepository) GetMatched(limit int) ([]DecodeRecord, error) {
	var decodes []DecodeRecord
	err := r.db.Where("matched = ?", true).
		Order("decoded_at DESC").
		Limit(limit).
		Find(&decodes).Error
	return decodes, err
}

// GetByCode retrieves decodes of a specific call code
func (r *DecodeRepository) GetByCode(code string, limit int) ([]DecodeRecord, error) {
	var decodes []DecodeRecord
	err := r.db.Where("code = ?", code).
		Order("decoded_at DESC").
		Limit(limit).
		Find(&decodes).Error
	return decodes, err
}

// GetByProtocol retrieves decodes received with a specific protocol
func (r *DecodeRepository) GetByProtocol(protocol string, limit int) ([]DecodeRecord, error) {
	var decodes []DecodeRecord
	err := r.db.Where("protocol = ?", protocol).
		Order("decoded_at DESC").
		Limit(limit).
		Find(&decodes).Error
	return decodes, err
}

// GetByTimeRange retrieves decodes within a time range
func (r *DecodeRepository) GetByTimeRange(start, end time.Time, limit int) ([]DecodeRecord, error) {
	var decodes []DecodeRecord
	err := r.db.Where("decoded_at BETWEEN ? AND ?", start, end).
		Order("decoded_at DESC").
		Limit(limit).
		Find(&decodes).Error
	return decodes, err
}

// DeleteOlderThan deletes decodes older than the specified time
func (r *DecodeRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("decoded_at < ?", before).Delete(&DecodeRecord{})
	return result.RowsAffected, result.Error
}

// TransmissionRepository handles transmission record database operations
type TransmissionRepository struct {
	db *gorm.DB
}

// NewTransmissionRepository creates a new transmission repository
func NewTransmissionRepository(db *gorm.DB) *TransmissionRepository {
	return &TransmissionRepository{db: db}
}

// Create adds a new transmission record
func (r *TransmissionRepository) Create(rec *TransmissionRecord) error {
	return r.db.Create(rec).Error
}

// GetRecent retrieves the most recent N transmissions
func (r *TransmissionRepository) GetRecent(limit int) ([]TransmissionRecord, error) {
	var transmissions []TransmissionRecord
	err := r.db.Order("started_at DESC").Limit(limit).Find(&transmissions).Error
	return transmissions, err
}

// GetRecentPaginated retrieves transmissions with pagination
func (r *TransmissionRepository) GetRecentPaginated(page, perPage int) ([]TransmissionRecord, int64, error) {
	var transmissions []TransmissionRecord
	var total int64

	// Count total records
	if err := r.db.Model(&TransmissionRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Get paginated results
	offset := (page - 1) * perPage
	err := r.db.Order("started_at DESC").
		Offset(offset).
		Limit(perPage).
		Find(&transmissions).Error

	return transmissions, total, err
}

// GetByDestination retrieves transmissions to a specific call code
func (r *TransmissionRepository) GetByDestination(destination string, limit int) ([]TransmissionRecord, error) {
	var transmissions []TransmissionRecord
	err := r.db.Where("destination = ?", destination).
		Order("started_at DESC").
		Limit(limit).
		Find(&transmissions).Error
	return transmissions, err
}

// DeleteOlderThan deletes transmissions older than the specified time
func (r *TransmissionRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("started_at < ?", before).Delete(&TransmissionRecord{})
	return result.RowsAffected, result.Error
}
