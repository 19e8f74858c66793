// Package progress owns the durable user record. All mutations follow a
// read-modify-write cycle against a whole-record key/value collaborator: load,
// produce a new complete value, save. There is no partial-field update.
package progress

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/windfall/cicero/internal/analysis"
	"github.com/windfall/cicero/internal/catalog"
)

// SchemaVersion tags persisted records so future field additions stay
// readable. The original record carried no version at all.
const SchemaVersion = 1

// UserProgress is the persisted progress record. Name is set once at creation
// and immutable thereafter.
type UserProgress struct {
	Version            int               `json:"version"`
	Name               string            `json:"name"`
	Score              int               `json:"score"`
	ExercisesCompleted int               `json:"exercisesCompleted"`
	Streak             int               `json:"streak"`
	LastAnalysis       *time.Time        `json:"lastAnalysis"`
	History            []analysis.Result `json:"history"`
	PreferredLanguage  catalog.Language  `json:"preferredLanguage"`
}

// NewUserProgress creates a fresh record for a named profile.
func NewUserProgress(name string, lang catalog.Language) UserProgress {
	return UserProgress{
		Version:           SchemaVersion,
		Name:              name,
		Streak:            1,
		History:           []analysis.Result{},
		PreferredLanguage: lang,
	}
}

// withResult returns a copy of the record with res folded in: history is
// prepended (newest-first), the completion counter incremented and the
// aggregate score recomputed as the running weighted mean.
func (u UserProgress) withResult(res analysis.Result) UserProgress {
	next := u
	next.Score = int(math.Round((float64(u.Score)*float64(u.ExercisesCompleted) + res.Score) / float64(u.ExercisesCompleted+1)))
	next.ExercisesCompleted = u.ExercisesCompleted + 1
	next.History = append([]analysis.Result{res}, u.History...)
	next.LastAnalysis = &res.Date
	return next
}

// HistoryDigest renders the n most recent results as a short textual summary
// for the analysis collaborator's trend context.
func (u UserProgress) HistoryDigest(n int) string {
	if len(u.History) == 0 {
		return "No history."
	}
	if n > len(u.History) {
		n = len(u.History)
	}
	parts := make([]string, 0, n)
	for _, h := range u.History[:n] {
		parts = append(parts, fmt.Sprintf("%s: %.0f", h.ExerciseTitle, h.Score))
	}
	return strings.Join(parts, ", ")
}
