package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"ddreport/adapters/excel"
	"ddreport/domain/core"
	"ddreport/domain/mapping"
	"ddreport/domain/run"
	"ddreport/internal/artifacts"
	"ddreport/internal/docx"
	"ddreport/internal/errors"
	"ddreport/ports"

	"go.uber.org/zap"
)

// PipelineConfig holds what every run of the pipeline shares
type PipelineConfig struct {
	TemplatePath  string
	Mapping       mapping.Mapping
	Facts         mapping.FactCells
	Excel         excel.ExcelConfig
	SkipNarrative bool
}

// Request is one report generation
type Request struct {
	WorkbookPath string
	// WorkbookName is the name shown to the operator, usually the upload's
	// original file name.
	WorkbookName string
}

type workbookSource interface {
	ports.CellReader
	Close() error
}

// ReportPipeline drives a run from uploaded workbook to final report
type ReportPipeline struct {
	config    PipelineConfig
	filler    *TemplateFiller
	narrator  *NarrativeRequester
	assembler *ReportAssembler
	store     *artifacts.Store
	runs      ports.RunRepository
	logger    *zap.Logger

	openWorkbook func(path string) (workbookSource, error)
	readText     func(path string) (string, error)
}

// NewReportPipeline wires a pipeline. narrator may be nil when the
// narrative is skipped; runs may be nil when no ledger is configured.
func NewReportPipeline(
	config PipelineConfig,
	filler *TemplateFiller,
	narrator *NarrativeRequester,
	assembler *ReportAssembler,
	store *artifacts.Store,
	runs ports.RunRepository,
	logger *zap.Logger,
) *ReportPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &ReportPipeline{
		config:    config,
		filler:    filler,
		narrator:  narrator,
		assembler: assembler,
		store:     store,
		runs:      runs,
		logger:    logger,
	}
	p.openWorkbook = func(path string) (workbookSource, error) {
		return excel.OpenWorkbook(path, config.Excel, logger)
	}
	p.readText = func(path string) (string, error) {
		doc, err := docx.Open(path)
		if err != nil {
			return "", err
		}
		return doc.PlainText(), nil
	}
	return p
}

// CheckTemplate reports a configuration error when the template is missing
func (p *ReportPipeline) CheckTemplate() error {
	info, err := os.Stat(p.config.TemplatePath)
	if err != nil {
		return errors.ConfigInvalid(fmt.Sprintf("模板文件不存在: %s", p.config.TemplatePath))
	}
	if info.IsDir() {
		return errors.ConfigInvalid(fmt.Sprintf("模板路径不是文件: %s", p.config.TemplatePath))
	}
	return nil
}

// Generate runs every step and returns the finished run. It never returns
// an error: failures end the run in Failed with an error banner, and
// artifacts already written stay where they are.
func (p *ReportPipeline) Generate(ctx context.Context, req Request) *run.Run {
	r := run.New(core.NewRunID(), req.WorkbookName)
	log := p.logger.With(zap.String("run_id", r.ID.String()), zap.String("workbook", req.WorkbookName))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("run panicked", zap.Any("panic", rec), zap.String("state", string(r.State)))
			p.abort(r, errors.InternalError(fmt.Sprintf("internal error: %v", rec)), log)
		}
		p.record(r, log)
		log.Info("run finished",
			zap.String("state", string(r.State)),
			zap.String("failed_at", string(r.FailedAt)),
			zap.Duration("elapsed", r.Duration()))
	}()

	if err := p.CheckTemplate(); err != nil {
		p.fail(r, "模板检查失败", err)
		return r
	}

	r.Info("正在生成尽职调查报告...")

	wb, err := p.openWorkbook(req.WorkbookPath)
	if err != nil {
		p.fail(r, "读取Excel文件失败", err)
		r.Error("报告生成失败，请检查模板和输入数据")
		return r
	}
	defer wb.Close()
	p.advance(r, run.StateSpreadsheetLoaded)

	if _, err := p.store.RunDir(r.ID); err != nil {
		p.fail(r, "创建输出目录失败", err)
		return r
	}

	filledPath := p.store.FilledPath(r.ID)
	if _, err := p.filler.FillFrom(ctx, wb, p.config.TemplatePath, filledPath, p.config.Mapping); err != nil {
		p.fail(r, "生成Word文档时出错", err)
		r.Error("报告生成失败，请检查模板和输入数据")
		return r
	}
	r.FilledPath = filledPath
	p.advance(r, run.StateTemplateFilled)
	r.Success("报告生成成功！")

	facts, err := ExtractFacts(wb, p.config.Facts)
	if err != nil {
		p.fail(r, "提取关键信息失败", err)
		return r
	}
	p.advance(r, run.StateFactsExtracted)

	if p.config.SkipNarrative || p.narrator == nil {
		p.advance(r, run.StateNarrativeRequested)
		r.Info("已跳过AI风险评估结论")
		p.advance(r, run.StateDone)
		return r
	}

	// An unreadable filled document still gets a narrative from the facts alone
	documentText, err := p.readText(filledPath)
	if err != nil {
		log.Warn("failed to read filled document, prompting with facts only", zap.Error(err))
		documentText = ""
	}

	r.Info("AI正在生成风险评估结论...")
	narrative, err := p.narrator.Request(ctx, facts, documentText)
	p.advance(r, run.StateNarrativeRequested)
	if err != nil {
		log.Warn("narrative unavailable, keeping filled report", zap.Error(err))
		r.Error(fmt.Sprintf("API调用失败: %v", err))
		p.advance(r, run.StateDone)
		return r
	}
	r.Narrative = narrative

	finalPath := p.store.FinalPath(r.ID)
	if err := p.assembler.Assemble(filledPath, narrative, finalPath); err != nil {
		p.fail(r, "生成最终报告失败", err)
		return r
	}
	r.FinalPath = finalPath
	p.advance(r, run.StateReportAssembled)
	r.Success("尽职调查报告已生成")
	p.advance(r, run.StateDone)
	return r
}

// advance only follows transitions the pipeline itself sequences, so an
// illegal one is a programming error.
func (p *ReportPipeline) advance(r *run.Run, to run.State) {
	if err := r.Advance(to); err != nil {
		panic(err)
	}
}

// fail ends the run at a step that may fail. Like advance, an illegal
// transition is a programming error.
func (p *ReportPipeline) fail(r *run.Run, text string, err error) {
	if ferr := r.Fail(text, err); ferr != nil {
		panic(ferr)
	}
}

// abort ends a run interrupted by a panic. From FactsExtracted the narrative
// step is entered first so the run can still fail legally; a run that already
// assembled its report is completed instead.
func (p *ReportPipeline) abort(r *run.Run, err error, log *zap.Logger) {
	switch r.State {
	case run.StateFactsExtracted:
		_ = r.Advance(run.StateNarrativeRequested)
	case run.StateReportAssembled:
		r.Error(fmt.Sprintf("报告生成异常: %v", err))
		_ = r.Advance(run.StateDone)
		return
	}
	if ferr := r.Fail("报告生成失败", err); ferr != nil {
		log.Error("run could not be failed", zap.Error(ferr))
		r.Error(fmt.Sprintf("报告生成失败: %v", err))
	}
}

func (p *ReportPipeline) record(r *run.Run, log *zap.Logger) {
	if p.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.runs.Record(ctx, r.Record()); err != nil {
		log.Warn("failed to record run", zap.Error(err))
	}
}
