// Package artifacts lays out report files on local disk. Every run owns a
// directory named by its run ID, so concurrent runs never share a path.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ddreport/domain/core"
	"ddreport/internal/errors"

	"go.uber.org/zap"
)

const (
	// FilledName is the template filled with workbook values
	FilledName = "surveyreport.docx"
	// FinalName is the filled template plus the appended narrative
	FinalName = "final_report.docx"

	uploadsDir = "uploads"
)

// Store manages the output directory
type Store struct {
	basePath string
	logger   *zap.Logger
}

// NewStore creates the output directory when missing
func NewStore(basePath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.ConfigInvalid("output directory is required")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve output directory %s", basePath)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", abs)
	}
	return &Store{basePath: abs, logger: logger}, nil
}

// BasePath returns the absolute output directory
func (s *Store) BasePath() string {
	return s.basePath
}

// RunDir returns the run's directory, creating it on demand
func (s *Store) RunDir(id core.RunID) (string, error) {
	dir := filepath.Join(s.basePath, id.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create run directory %s", dir)
	}
	return dir, nil
}

// FilledPath is where the run's filled template is written
func (s *Store) FilledPath(id core.RunID) string {
	return filepath.Join(s.basePath, id.String(), FilledName)
}

// FinalPath is where the run's final report is written
func (s *Store) FinalPath(id core.RunID) string {
	return filepath.Join(s.basePath, id.String(), FinalName)
}

// Open opens one of a run's artifacts for download. The run ID comes from the
// outside world, so it must parse as a UUID and name must be a known artifact.
func (s *Store) Open(runID, name string) (*os.File, os.FileInfo, error) {
	id, err := core.ParseRunID(runID)
	if err != nil {
		return nil, nil, errors.InvalidInput(err.Error())
	}
	if name != FilledName && name != FinalName {
		return nil, nil, errors.InvalidInput(fmt.Sprintf("unknown artifact %q", name))
	}

	path := filepath.Join(s.basePath, id.String(), name)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NotFound(fmt.Sprintf("artifact %s/%s", id, name))
		}
		return nil, nil, errors.Wrapf(err, "failed to open artifact %s", path)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, errors.Wrapf(err, "failed to stat artifact %s", path)
	}
	return file, info, nil
}

// SaveUpload copies an uploaded workbook into a fresh temporary file that
// keeps ext, and returns its path. Callers remove it with Cleanup.
func (s *Store) SaveUpload(r io.Reader, ext string) (string, error) {
	dir := filepath.Join(s.basePath, uploadsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create upload directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(ext))
	if err != nil {
		return "", errors.Wrap(err, "failed to create upload file")
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to write upload file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, "failed to close upload file")
	}
	return tmp.Name(), nil
}

// Cleanup removes a temporary file. Failures are logged and otherwise ignored.
func (s *Store) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Debug("temporary file cleanup failed", zap.String("path", path), zap.Error(err))
	}
}
