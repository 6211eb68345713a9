package artifacts

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ddreport/domain/core"
	"ddreport/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "outputs"), nil)
	require.NoError(t, err)
	return s
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	s := newTestStore(t)
	info, err := os.Stat(s.BasePath())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = NewStore("  ", nil)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestRunPathsAreScopedPerRun(t *testing.T) {
	s := newTestStore(t)
	a, b := core.NewRunID(), core.NewRunID()

	dir, err := s.RunDir(a)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	assert.Equal(t, filepath.Join(dir, FilledName), s.FilledPath(a))
	assert.Equal(t, filepath.Join(dir, FinalName), s.FinalPath(a))
	assert.NotEqual(t, s.FinalPath(a), s.FinalPath(b))
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)
	id := core.NewRunID()
	_, err := s.RunDir(id)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.FinalPath(id), []byte("report"), 0644))

	f, info, err := s.Open(id.String(), FinalName)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "report", string(data))
	assert.Equal(t, int64(6), info.Size())

	_, _, err = s.Open(id.String(), FilledName)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))

	_, _, err = s.Open("../../etc", FinalName)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))

	_, _, err = s.Open(id.String(), "../secrets.docx")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestSaveUploadAndCleanup(t *testing.T) {
	s := newTestStore(t)

	path, err := s.SaveUpload(strings.NewReader("workbook bytes"), ".XLSX")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".xlsx"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "workbook bytes", string(data))

	other, err := s.SaveUpload(strings.NewReader("x"), ".xlsx")
	require.NoError(t, err)
	assert.NotEqual(t, path, other)

	s.Cleanup(path)
	assert.NoFileExists(t, path)

	// a second removal and an empty path are both silent
	s.Cleanup(path)
	s.Cleanup("")
}
