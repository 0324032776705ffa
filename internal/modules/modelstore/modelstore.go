// Package modelstore manages the lifecycle of on-device model files:
// discovery in the model directory, streaming downloads with observable
// progress, validation, and cleanup of corrupted artifacts.
package modelstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/aierr"
	"github.com/jobtrail/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

// ModelFile describes one discovered model artifact.
type ModelFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Valid     bool   `json:"valid"`
}

// taskStore is the slice of the task service the model store depends on.
type taskStore interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}, dedupKey string) (*taskqueue.Task, bool, error)
	GetByID(ctx context.Context, id string) (*taskqueue.Task, error)
	UpdateStatus(ctx context.Context, id string, status taskqueue.TaskStatus, result interface{}, errMsg string) error
	UpdateProgress(ctx context.Context, id string, done, total int64) error
	List(ctx context.Context, taskType string, limit int) ([]*taskqueue.Task, error)
}

// Service owns the model directory.
type Service struct {
	dir      string
	settings *settings.Service
	tasks    taskStore
	log      *zap.Logger
}

func NewService(dir string, settingsSvc *settings.Service, tasks taskStore, log *zap.Logger) *Service {
	return &Service{dir: dir, settings: settingsSvc, tasks: tasks, log: log}
}

// Dir returns the model directory path.
func (s *Service) Dir() string { return s.dir }

// FindModelFiles scans the model directory. Read-only and idempotent; files
// with corrupted names are included (marked invalid) so cleanup can see them.
func (s *Service) FindModelFiles() ([]ModelFile, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []ModelFile{}, nil
	}
	if err != nil {
		return nil, err
	}

	files := make([]ModelFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !looksLikeModelFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, ModelFile{
			Path:      filepath.Join(s.dir, entry.Name()),
			SizeBytes: info.Size(),
			Valid:     ValidFilename(entry.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ValidateModelPath fails when the model file is absent or its filename was
// derived from a URL with query parameters.
func (s *Service) ValidateModelPath(path string) error {
	if path == "" {
		return aierr.New(aierr.KindInvalidModelFile, "model path is not set")
	}
	info, err := os.Stat(path)
	if err != nil {
		return aierr.Wrap(aierr.KindInvalidModelFile, "model file does not exist", err)
	}
	if info.IsDir() {
		return aierr.New(aierr.KindInvalidModelFile, "model path is a directory")
	}
	if !ValidFilename(filepath.Base(path)) {
		return aierr.Newf(aierr.KindInvalidModelFile, "model filename %q carries URL artifacts", filepath.Base(path))
	}
	return nil
}

// CleanupInvalidModelFiles deletes every file in the model directory that
// fails validation and returns the removed paths.
func (s *Service) CleanupInvalidModelFiles() ([]string, error) {
	files, err := s.FindModelFiles()
	if err != nil {
		return nil, err
	}

	removed := make([]string, 0)
	for _, f := range files {
		if f.Valid {
			continue
		}
		if err := os.Remove(f.Path); err != nil {
			s.log.Warn("cleanup: could not remove model file",
				zap.String("path", f.Path), zap.Error(err))
			continue
		}
		removed = append(removed, f.Path)
	}
	if len(removed) > 0 {
		s.log.Info("removed invalid model files", zap.Strings("paths", removed))
	}
	return removed, nil
}

// ClearInvalidModelPath clears the persisted local model path when it no
// longer validates. Returns whether the settings record changed.
func (s *Service) ClearInvalidModelPath() (bool, error) {
	cur, err := s.settings.Current()
	if err != nil {
		return false, err
	}
	if cur.LocalModelPath == "" {
		return false, nil
	}
	if err := s.ValidateModelPath(cur.LocalModelPath); err == nil {
		return false, nil
	}
	return s.settings.ClearLocalModelPath()
}
