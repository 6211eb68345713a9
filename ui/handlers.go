package ui

import (
	stderrors "errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"ddreport/app"
	"ddreport/domain/core"
	"ddreport/domain/run"
	"ddreport/internal/artifacts"
	"ddreport/internal/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// pageData feeds index.html
type pageData struct {
	Title         string
	Accept        string
	MaxUploadMB   int
	Messages      []run.Message
	Run           *run.Run
	NarrativeHTML template.HTML
	DownloadURL   string
}

// runView is the JSON form of a finished run
type runView struct {
	ID          string        `json:"id"`
	State       run.State     `json:"state"`
	FailedAt    run.State     `json:"failed_at,omitempty"`
	Workbook    string        `json:"workbook"`
	Narrative   string        `json:"narrative,omitempty"`
	Messages    []run.Message `json:"messages"`
	DownloadURL string        `json:"download_url,omitempty"`
}

func (s *Server) newPage() pageData {
	return pageData{
		Title:       "智能尽职调查报告生成系统",
		Accept:      strings.Join(s.config.Excel.Extensions, ","),
		MaxUploadMB: s.config.MaxUploadMB,
	}
}

func downloadURL(id core.RunID) string {
	return "/reports/" + id.String() + "/download"
}

func (s *Server) handleIndex(c *gin.Context) {
	s.renderTemplate(c, http.StatusOK, "index.html", s.newPage())
}

// respondError shows a banner on the form, or JSON when the client asked for it
func (s *Server) respondError(c *gin.Context, status int, text string) {
	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(status, gin.H{"error": text})
		return
	}
	page := s.newPage()
	page.Messages = []run.Message{{Level: run.LevelError, Text: text}}
	s.renderTemplate(c, status, "index.html", page)
}

// handleGenerate accepts one workbook upload and runs the pipeline on it
func (s *Server) handleGenerate(c *gin.Context) {
	maxBytes := int64(s.config.MaxUploadMB) * 1024 * 1024
	// Multipart framing needs a little headroom above the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1024*1024)

	file, header, err := c.Request.FormFile("workbook")
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		s.respondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("文件超过 %d MB 限制", s.config.MaxUploadMB))
		return
	}
	if err != nil {
		s.logger.Info("upload rejected", zap.Error(err))
		s.respondError(c, http.StatusBadRequest, "请选择要上传的Excel文件")
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		s.respondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("文件大小 (%.1f MB) 超过 %d MB 限制", float64(header.Size)/(1024*1024), s.config.MaxUploadMB))
		return
	}
	name := filepath.Base(header.Filename)
	if !s.config.Excel.AcceptsExtension(name) {
		s.respondError(c, http.StatusBadRequest,
			fmt.Sprintf("仅支持 %s 格式的Excel文件", strings.Join(s.config.Excel.Extensions, " / ")))
		return
	}

	tmpPath, err := s.store.SaveUpload(file, filepath.Ext(name))
	if err != nil {
		s.logger.Error("failed to store upload", zap.Error(err))
		s.respondError(c, http.StatusInternalServerError, "保存上传文件失败")
		return
	}
	defer s.store.Cleanup(tmpPath)

	if err := s.slots.Acquire(c.Request.Context(), 1); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, "请求已取消")
		return
	}
	defer s.slots.Release(1)
	r := s.generator.Generate(c.Request.Context(), app.Request{WorkbookPath: tmpPath, WorkbookName: name})

	uploaded := run.Message{Level: run.LevelSuccess, Text: "已上传文件: " + name}
	messages := append([]run.Message{uploaded}, r.Messages...)

	var dl string
	if r.HasFinalReport() {
		dl = downloadURL(r.ID)
	}

	if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
		c.JSON(http.StatusOK, runView{
			ID:          r.ID.String(),
			State:       r.State,
			FailedAt:    r.FailedAt,
			Workbook:    name,
			Narrative:   r.Narrative,
			Messages:    messages,
			DownloadURL: dl,
		})
		return
	}

	page := s.newPage()
	page.Messages = messages
	page.Run = r
	page.NarrativeHTML = renderNarrative(r.Narrative)
	page.DownloadURL = dl
	s.renderTemplate(c, http.StatusOK, "index.html", page)
}

// handleDownload streams a run's final report
func (s *Server) handleDownload(c *gin.Context) {
	f, info, err := s.store.Open(c.Param("id"), artifacts.FinalName)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	c.DataFromReader(http.StatusOK, info.Size(), docxMIME, f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, artifacts.FinalName),
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run ledger not configured"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	recs, err := s.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		c.JSON(statusFor(err), gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": recs, "count": len(recs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run ledger not configured"})
		return
	}
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.runs.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
