package run

import (
	"time"

	"ddreport/domain/core"
)

// Record is the persisted summary of a finished run.
type Record struct {
	ID             core.RunID `json:"id" db:"id"`
	State          State      `json:"state" db:"state"`
	FailedAt       State      `json:"failed_at,omitempty" db:"failed_at"`
	WorkbookName   string     `json:"workbook_name" db:"workbook_name"`
	FilledPath     string     `json:"filled_path" db:"filled_path"`
	FinalPath      string     `json:"final_path" db:"final_path"`
	NarrativeChars int        `json:"narrative_chars" db:"narrative_chars"`
	Error          string     `json:"error,omitempty" db:"error"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     time.Time  `json:"finished_at" db:"finished_at"`
}

// Record summarizes the run for the ledger.
func (r *Run) Record() Record {
	rec := Record{
		ID:             r.ID,
		State:          r.State,
		FailedAt:       r.FailedAt,
		WorkbookName:   r.WorkbookName,
		FilledPath:     r.FilledPath,
		FinalPath:      r.FinalPath,
		NarrativeChars: len([]rune(r.Narrative)),
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
