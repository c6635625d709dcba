package database

import (
	"time"

	"gorm.io/gorm"
)

// DecodeRecord represents one completed decode of a selective call
type DecodeRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	EventID   string    `gorm:"index;size:36" json:"event_id"`
	Code      string    `gorm:"index;not null;size:32" json:"code"`
	Raw       string    `gorm:"size:64" json:"raw"`
	Protocol  string    `gorm:"index;size:16" json:"protocol"`
	Matched   bool      `gorm:"index" json:"matched"`
	Label     string    `gorm:"size:64" json:"label"`
	SamplePos int64     `json:"sample_pos"`
	DecodedAt time.Time `gorm:"index;not null" json:"decoded_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for DecodeRecord
func (DecodeRecord) TableName() string {
	return "decodes"
}

// BeforeCreate hook to ensure timestamps are set
func (d *DecodeRecord) BeforeCreate(tx *gorm.DB) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if d.DecodedAt.IsZero() {
		d.DecodedAt = time.Now()
	}
	return nil
}

// TransmissionRecord represents one finished outgoing call
type TransmissionRecord struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	JobID       string    `gorm:"index;size:36" json:"job_id"`
	Protocol    string    `gorm:"size:16" json:"protocol"`
	Source      string    `gorm:"size:32" json:"source"`
	Destination string    `gorm:"index;not null;size:32" json:"destination"`
	Symbols     string    `gorm:"size:64" json:"symbols"`
	Origin      string    `gorm:"size:16" json:"origin"`
	StartedAt   time.Time `gorm:"index;not null" json:"started_at"`
	EndedAt     time.Time `gorm:"not null" json:"ended_at"`
	Duration    float64   `gorm:"not null" json:"duration"` // Duration in seconds
	Samples     int64     `gorm:"default:0" json:"samples"`
	Aborted     bool      `json:"aborted"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for TransmissionRecord
func (TransmissionRecord) TableName() string {
	return "transmissions"
}

// BeforeCreate hook to ensure timestamps are set
func (t *TransmissionRecord) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now()
	}
	if t.EndedAt.IsZero() {
		t.EndedAt = time.Now()
	}
	return nil
}

// DirectoryEntry maps a selective call code to a station label
type DirectoryEntry struct {
	Code      string    `gorm:"primarykey;not null;size:32" json:"code"`
	Label     string    `gorm:"size:64" json:"label"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for DirectoryEntry
func (DirectoryEntry) TableName() string {
	return "directory_entries"
}
