package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/habitkeep/internal/constants"
	"github.com/julianstephens/habitkeep/internal/models"
)

// EncodeLegacyDays serializes the embedded day map for its text/JSON column.
// A nil map is stored as NULL.
func EncodeLegacyDays(days map[string]bool) (sql.NullString, error) {
	if days == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(days)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode legacy days: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// DecodeLegacyDays is the inverse of EncodeLegacyDays
func DecodeLegacyDays(raw sql.NullString) (map[string]bool, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var days map[string]bool
	if err := json.Unmarshal([]byte(raw.String), &days); err != nil {
		return nil, fmt.Errorf("failed to decode legacy days: %w", err)
	}
	return days, nil
}

// NormalizeRecord fills defaults on a record about to be written
func NormalizeRecord(rec models.CompletionRecord, now time.Time) models.CompletionRecord {
	if rec.Value == 0 {
		rec.Value = constants.DefaultValue
	}
	if rec.TargetValue == 0 {
		rec.TargetValue = constants.DefaultTargetValue
	}
	if !rec.Completed {
		rec.CompletedAt = nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return rec
}

// Rate returns completed/days, or 0 for an empty month
func Rate(completed, days int) float64 {
	if days == 0 {
		return 0
	}
	return float64(completed) / float64(days)
}
