// Package run models one report generation run: its identity, the state
// machine it moves through, and the status messages shown to the operator.
package run

import (
	"fmt"
	"time"

	"ddreport/domain/core"
)

// State is a step of the end-to-end run.
type State string

const (
	StateIdle               State = "idle"
	StateSpreadsheetLoaded  State = "spreadsheet_loaded"
	StateTemplateFilled     State = "template_filled"
	StateFactsExtracted     State = "facts_extracted"
	StateNarrativeRequested State = "narrative_requested"
	StateReportAssembled    State = "report_assembled"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// transitions lists the legal successor states. Failed is absorbing.
// NarrativeRequested may go straight to Done when the narrative is empty:
// assembly is skipped and the filled artifact is the result.
var transitions = map[State][]State{
	StateIdle:               {StateSpreadsheetLoaded, StateFailed},
	StateSpreadsheetLoaded:  {StateTemplateFilled, StateFailed},
	StateTemplateFilled:     {StateFactsExtracted, StateFailed},
	StateFactsExtracted:     {StateNarrativeRequested},
	StateNarrativeRequested: {StateReportAssembled, StateDone, StateFailed},
	StateReportAssembled:    {StateDone},
}

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Level classifies a status message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is one user-facing status line or banner.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Run is the record of one invocation of the pipeline.
type Run struct {
	ID           core.RunID `json:"id"`
	State        State      `json:"state"`
	FailedAt     State      `json:"failed_at,omitempty"`
	WorkbookName string     `json:"workbook_name"`
	FilledPath   string     `json:"filled_path,omitempty"`
	FinalPath    string     `json:"final_path,omitempty"`
	Narrative    string     `json:"narrative,omitempty"`
	Messages     []Message  `json:"messages"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at,omitempty"`
	Err          error      `json:"-"`
}

// New starts a run in the Idle state.
func New(id core.RunID, workbookName string) *Run {
	return &Run{
		ID:           id,
		State:        StateIdle,
		WorkbookName: workbookName,
		StartedAt:    time.Now(),
	}
}

// Advance moves the run to the next state.
func (r *Run) Advance(to State) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("illegal run transition %s -> %s", r.State, to)
	}
	r.State = to
	if to.Terminal() {
		r.FinishedAt = time.Now()
	}
	return nil
}

// Fail moves the run to Failed, recording where it stopped and why, and adds
// an error banner. Artifacts already written are left in place. Failing from
// a state that has no Failed successor is rejected and leaves the run as is.
func (r *Run) Fail(text string, err error) error {
	if !CanTransition(r.State, StateFailed) {
		return fmt.Errorf("illegal run transition %s -> %s", r.State, StateFailed)
	}
	r.FailedAt = r.State
	r.State = StateFailed
	r.Err = err
	r.FinishedAt = time.Now()
	if err != nil {
		text = fmt.Sprintf("%s: %v", text, err)
	}
	r.Error(text)
	return nil
}

func (r *Run) addMessage(level Level, text string) {
	r.Messages = append(r.Messages, Message{Level: level, Text: text})
}

func (r *Run) Info(text string)    { r.addMessage(LevelInfo, text) }
func (r *Run) Success(text string) { r.addMessage(LevelSuccess, text) }
func (r *Run) Warning(text string) { r.addMessage(LevelWarning, text) }
func (r *Run) Error(text string)   { r.addMessage(LevelError, text) }

// Succeeded reports whether the run reached Done.
func (r *Run) Succeeded() bool {
	return r.State == StateDone
}

// HasFinalReport reports whether the narrative-bearing artifact was written.
func (r *Run) HasFinalReport() bool {
	return r.Succeeded() && r.FinalPath != ""
}

// Duration is the wall time of a finished run, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
