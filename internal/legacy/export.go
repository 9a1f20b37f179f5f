package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/hujson"

	apperrors "github.com/julianstephens/habitkeep/internal/errors"
	"github.com/julianstephens/habitkeep/internal/logger"
	"github.com/julianstephens/habitkeep/internal/models"
	"github.com/julianstephens/habitkeep/internal/storage"
)

// ExportedHabit is one habit document from a legacy export. Both "_id" and
// "id" are accepted as the identifier.
type ExportedHabit struct {
	MongoID             string          `json:"_id"`
	ID                  string          `json:"id"`
	UserID              string          `json:"userId"`
	Name                string          `json:"name"`
	GoalDays            int             `json:"goalDays"`
	CompletedDays       map[string]bool `json:"completedDays"`
	CompletionsMigrated bool            `json:"completionsMigrated"`
	Streaks             struct {
		Current           int    `json:"current"`
		Longest           int    `json:"longest"`
		LastCompletedDate string `json:"lastCompletedDate"`
	} `json:"streaks"`
	CreatedAt  *time.Time `json:"createdAt"`
	ArchivedAt *time.Time `json:"archivedAt"`
	DeletedAt  *time.Time `json:"deletedAt"`
}

// Key returns the document identifier
func (e ExportedHabit) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.MongoID
}

// ReadExport parses a JSON array of habit documents. Comments and trailing
// commas are tolerated.
func ReadExport(r io.Reader) ([]ExportedHabit, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return nil, apperrors.Validationf("invalid export: %v", err)
	}
	var habits []ExportedHabit
	if err := json.Unmarshal(std, &habits); err != nil {
		return nil, apperrors.Validationf("invalid export: %v", err)
	}
	return habits, nil
}

// ImportResult counts what an import did
type ImportResult struct {
	Created  int
	Existing int
	Failed   int
}

// Importer creates unmigrated habits from exported documents
type Importer struct {
	store storage.Provider
	// DefaultUser owns documents that carry no userId
	DefaultUser string
}

func NewImporter(store storage.Provider, defaultUser string) *Importer {
	return &Importer{store: store, DefaultUser: defaultUser}
}

// Import adds every exported habit that is not already stored. Habits keep
// their embedded day maps and are left unmigrated unless the export says
// otherwise; run the Migrator afterwards.
func (im *Importer) Import(ctx context.Context, exported []ExportedHabit) (ImportResult, error) {
	var res ImportResult
	for _, e := range exported {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		habit := im.toHabit(e)
		if err := habit.Validate(); err != nil {
			logger.Warn("skipping invalid exported habit", "id", e.Key(), "error", err)
			res.Failed++
			continue
		}

		_, err := im.store.GetHabit(ctx, habit.ID, models.HabitQuery{IncludeArchived: true, IncludeDeleted: true})
		if err == nil {
			res.Existing++
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return res, err
		}

		if err := im.store.AddHabit(ctx, habit); err != nil {
			logger.Warn("failed to import habit", "id", habit.ID, "name", habit.Name, "error", err)
			res.Failed++
			continue
		}
		res.Created++
	}
	return res, nil
}

func (im *Importer) toHabit(e ExportedHabit) models.Habit {
	h := models.Habit{
		ID:                  e.Key(),
		UserID:              e.UserID,
		Name:                e.Name,
		GoalDays:            e.GoalDays,
		ArchivedAt:          e.ArchivedAt,
		DeletedAt:           e.DeletedAt,
		LegacyDays:          e.CompletedDays,
		CompletionsMigrated: e.CompletionsMigrated,
		Streak: models.StreakState{
			Current:           e.Streaks.Current,
			Longest:           e.Streaks.Longest,
			LastCompletedDate: e.Streaks.LastCompletedDate,
		},
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.UserID == "" {
		h.UserID = im.DefaultUser
	}
	if e.CreatedAt != nil {
		h.CreatedAt = *e.CreatedAt
	} else {
		h.CreatedAt = time.Now()
	}
	if h.LegacyDays == nil {
		h.LegacyDays = map[string]bool{}
	}
	return h
}
