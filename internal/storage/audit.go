package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/CloudSmith-Release-Safety/pet-clinic-event-processor/internal/contracts"
)

// FailureRecord is a processing failure persisted for manual DLQ triage
type FailureRecord struct {
	ID         uint      `gorm:"primaryKey"`
	MessageID  string    `gorm:"size:100;index"`
	QueueURL   string    `gorm:"size:255"`
	Source     string    `gorm:"size:10;not null"` // primary or dlq
	Kind       string    `gorm:"size:30;not null"`
	Reason     string    `gorm:"size:1000"`
	TraceID    string    `gorm:"size:36"`
	OccurredAt time.Time `gorm:"not null;index"`
}

// TableName returns the table name for FailureRecord
func (FailureRecord) TableName() string {
	return "processing_failures"
}

// AuditStore records processing failures in a database so operators can
// correlate DLQ contents with their rejection reasons
type AuditStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewAuditStore creates a new failure audit store
func NewAuditStore(db *gorm.DB, logger zerolog.Logger) *AuditStore {
	return &AuditStore{
		db:     db,
		logger: logger,
	}
}

// Ensure AuditStore implements contracts.FailureRecorder
var _ contracts.FailureRecorder = (*AuditStore)(nil)

// RecordFailure inserts one failure row. Audit writes never block processing:
// callers treat errors as log-and-continue.
func (s *AuditStore) RecordFailure(ctx context.Context, failure contracts.ProcessingFailure) error {
	record := FailureRecord{
		MessageID:  failure.MessageID,
		QueueURL:   failure.QueueURL,
		Source:     failure.Source,
		Kind:       failure.Kind,
		Reason:     failure.Reason,
		TraceID:    failure.TraceID,
		OccurredAt: failure.OccurredAt,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// Cleanup removes audit rows older than the given number of days
func (s *AuditStore) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	result := s.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&FailureRecord{})

	if result.Error != nil {
		return 0, fmt.Errorf("cleanup failed: %w", result.Error)
	}

	s.logger.Info().
		Int64("deleted", result.RowsAffected).
		Int("older_than_days", olderThanDays).
		Msg("Cleaned up failure records")

	return result.RowsAffected, nil
}

// AutoMigrate creates or updates the processing_failures table
func (s *AuditStore) AutoMigrate() error {
	return s.db.AutoMigrate(&FailureRecord{})
}
