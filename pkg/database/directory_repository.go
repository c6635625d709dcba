package database

import (
	"gorm.io/gorm"
)

// DirectoryRepository handles directory entry database operations
type DirectoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// Upsert creates or updates a directory entry
func (r *DirectoryRepository) Upsert(entry *DirectoryEntry) error {
	// Use GORM's Save which will update if exists (based on primary key) or create if not
	return r.db.Save(entry).Error
}

// UpsertBatch efficiently upserts multiple entries in a transaction
func (r *DirectoryRepository) UpsertBatch(entries []DirectoryEntry, batchSize int) error {
	if len(entries) == 0 {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		for i := 0; i < len(entries); i += batchSize {
			end := i + batchSize
			if end > len(entries) {
				end = len(entries)
			}
			batch := entries[i:end]

			if err := tx.Save(&batch).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByCode retrieves a directory entry by its call code
func (r *DirectoryRepository) GetByCode(code string) (*DirectoryEntry, error) {
	var entry DirectoryEntry
	err := r.db.Where("code = ?", code).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LabelFor returns the label for a call code, or an empty string when the
// code is not in the directory
func (r *DirectoryRepository) LabelFor(code string) string {
	entry, err := r.GetByCode(code)
	if err != nil {
		return ""
	}
	return entry.Label
}

// GetAll retrieves every directory entry, ordered by code
func (r *DirectoryRepository) GetAll() ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	err := r.db.Order("code ASC").Find(&entries).Error
	return entries, err
}

// Count returns the total number of directory entries
func (r *DirectoryRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&DirectoryEntry{}).Count(&count).Error
	return count, err
}

// DeleteAll removes all directory entries
func (r *DirectoryRepository) DeleteAll() error {
	return r.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&DirectoryEntry{}).Error
}
