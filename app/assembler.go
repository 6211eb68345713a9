package app

import (
	"path/filepath"

	"ddreport/internal/docx"
	"ddreport/internal/errors"

	"go.uber.org/zap"
)

// DefaultReportHeading titles the appended narrative section
const DefaultReportHeading = "AI风险评估结论"

// ReportAssembler appends the narrative section to a filled document
type ReportAssembler struct {
	heading string
	level   int
	logger  *zap.Logger
}

// NewReportAssembler creates an assembler writing a level 1 heading
func NewReportAssembler(heading string, logger *zap.Logger) *ReportAssembler {
	if heading == "" {
		heading = DefaultReportHeading
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportAssembler{heading: heading, level: 1, logger: logger}
}

// Assemble writes filledPath plus the heading and the narrative paragraph to
// finalPath. The filled document itself is never modified.
func (a *ReportAssembler) Assemble(filledPath, narrative, finalPath string) error {
	if filepath.Clean(filledPath) == filepath.Clean(finalPath) {
		return errors.InvalidInput("final report path must differ from the filled template path")
	}

	doc, err := docx.Open(filledPath)
	if err != nil {
		return errors.ExtractionError("failed to open filled document "+filledPath, err)
	}
	if _, err := doc.AddHeading(a.heading, a.level); err != nil {
		return errors.Wrap(err, "failed to add report heading")
	}
	doc.AddParagraph(narrative)

	if err := doc.Save(finalPath); err != nil {
		return errors.Wrapf(err, "failed to save final report %s", finalPath)
	}
	a.logger.Info("report assembled", zap.String("output", finalPath))
	return nil
}
