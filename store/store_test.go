package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meditech/hemascan/anemia"
)

func openTestStore(t *testing.T) *ScanStore {
	t.Helper()
	s, err := Open(":memory:", zap.NewNop())
	require.NoError(t, err)
	return s
}

func sampleResult() *anemia.Result {
	return &anemia.Result{
		ID:                 uuid.NewString(),
		HemoglobinEstimate: 10.5,
		Stage:              anemia.StageModerate,
		Confidence:         0.82,
		Explanation:        "pale conjunctiva across images",
		PerImageFindings:   map[string]string{"face": "mild pallor", "nails": "slow refill"},
		AyurvedicInsights:  map[string]string{"dosha_assessment": "Pitta imbalance"},
		ProviderUsed:       "gemini",
		Timestamp:          time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	result := sampleResult()
	details := &anemia.PatientDetails{Name: "Asha", Age: 29, Gender: "Female"}
	require.NoError(t, s.Save(ctx, "patient-1", result, details, []string{"scans/a.jpg"}))

	record, err := s.Get(ctx, result.ID)
	require.NoError(t, err)

	assert.Equal(t, "patient-1", record.PatientID)
	assert.Equal(t, "MODERATE", record.Stage)
	assert.Equal(t, "gemini", record.ProviderUsed)
	assert.Contains(t, record.PatientDetails, `"name":"Asha"`)
	assert.Contains(t, record.ImageURLs, "scans/a.jpg")

	got := record.Result()
	assert.Equal(t, result.ID, got.ID)
	assert.Equal(t, result.Stage, got.Stage)
	assert.Equal(t, result.HemoglobinEstimate, got.HemoglobinEstimate)
	assert.Equal(t, result.PerImageFindings, got.PerImageFindings)
	assert.Equal(t, result.AyurvedicInsights, got.AyurvedicInsights)
}

func TestSaveWithoutOptionalFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	result := sampleResult()
	require.NoError(t, s.Save(ctx, "patient-1", result, nil, nil))

	record, err := s.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Empty(t, record.PatientDetails)
	assert.Empty(t, record.ImageURLs)

	got := record.Result()
	assert.NotNil(t, got.PerImageFindings)
	assert.NotNil(t, got.AyurvedicInsights)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListByPatient(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		result := sampleResult()
		result.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Save(ctx, "patient-1", result, nil, nil))
	}
	require.NoError(t, s.Save(ctx, "patient-2", sampleResult(), nil, nil))

	records, err := s.ListByPatient(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i-1].CreatedAt.Before(records[i].CreatedAt))
	}

	records, err = s.ListByPatient(ctx, "patient-3")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListByPatientCapped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < listLimit+5; i++ {
		result := sampleResult()
		result.Timestamp = base.Add(time.Duration(i) * time.Second)
		result.Explanation = fmt.Sprintf("scan %d", i)
		require.NoError(t, s.Save(ctx, "patient-1", result, nil, nil))
	}

	records, err := s.ListByPatient(ctx, "patient-1")
	require.NoError(t, err)
	assert.Len(t, records, listLimit)
	// The cap keeps the newest entries.
	assert.Equal(t, fmt.Sprintf("scan %d", listLimit+4), records[0].Explanation)
}
