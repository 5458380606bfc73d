// Package store persists completed anemia screenings. It consumes
// results as values after orchestration finishes and never influences
// provider selection or fallback.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/meditech/hemascan/anemia"
)

// ErrNotFound reports a scan id with no record.
var ErrNotFound = errors.New("scan not found")

// listLimit caps history queries, newest first.
const listLimit = 50

// ScanRecord is the persisted form of one screening. The per-image
// findings, insights, patient snapshot and image URLs are stored as JSON
// columns; the scalar fields stay queryable.
type ScanRecord struct {
	ID                 string `gorm:"primaryKey"`
	PatientID          string `gorm:"index"`
	HemoglobinEstimate float64
	Stage              string
	Confidence         float64
	Explanation        string
	PerImageFindings   string // JSON object
	AyurvedicInsights  string // JSON object
	ProviderUsed       string
	PatientDetails     string // JSON snapshot, may be empty
	ImageURLs          string // JSON array, may be empty
	CreatedAt          time.Time
}

// ScanStore is a sqlite-backed archive of screening results.
type ScanStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open creates a store at the given sqlite path (":memory:" works for
// tests) and migrates the schema.
func Open(path string, logger *zap.Logger) (*ScanStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open scan database: %w", err)
	}
	if err := db.AutoMigrate(&ScanRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	return &ScanStore{db: db, logger: logger}, nil
}

// Save archives a completed screening for a patient. details and
// imageURLs are optional.
func (s *ScanStore) Save(ctx context.Context, patientID string, result *anemia.Result, details *anemia.PatientDetails, imageURLs []string) error {
	record := ScanRecord{
		ID:                 result.ID,
		PatientID:          patientID,
		HemoglobinEstimate: result.HemoglobinEstimate,
		Stage:              string(result.Stage),
		Confidence:         result.Confidence,
		Explanation:        result.Explanation,
		PerImageFindings:   mustJSON(result.PerImageFindings),
		AyurvedicInsights:  mustJSON(result.AyurvedicInsights),
		ProviderUsed:       result.ProviderUsed,
		CreatedAt:          result.Timestamp,
	}
	if details != nil {
		record.PatientDetails = mustJSON(details)
	}
	if len(imageURLs) > 0 {
		record.ImageURLs = mustJSON(imageURLs)
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	s.logger.Info("scan saved",
		zap.String("scan_id", record.ID),
		zap.String("patient_id", patientID),
		zap.String("stage", record.Stage))
	return nil
}

// ListByPatient returns a patient's screenings, newest first, capped at
// the history limit.
func (s *ScanStore) ListByPatient(ctx context.Context, patientID string) ([]ScanRecord, error) {
	var records []ScanRecord
	err := s.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Limit(listLimit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	return records, nil
}

// Get fetches a single screening by id.
func (s *ScanStore) Get(ctx context.Context, id string) (*ScanRecord, error) {
	var record ScanRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return &record, nil
}

// Result rebuilds the domain result from a record.
func (r *ScanRecord) Result() *anemia.Result {
	result := &anemia.Result{
		ID:                 r.ID,
		HemoglobinEstimate: r.HemoglobinEstimate,
		Stage:              anemia.Stage(r.Stage),
		Confidence:         r.Confidence,
		Explanation:        r.Explanation,
		PerImageFindings:   map[string]string{},
		AyurvedicInsights:  map[string]string{},
		ProviderUsed:       r.ProviderUsed,
		Timestamp:          r.CreatedAt,
	}
	if r.PerImageFindings != "" {
		_ = json.Unmarshal([]byte(r.PerImageFindings), &result.PerImageFindings)
	}
	if r.AyurvedicInsights != "" {
		_ = json.Unmarshal([]byte(r.AyurvedicInsights), &result.AyurvedicInsights)
	}
	return result
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
