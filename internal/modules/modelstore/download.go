package modelstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jobtrail/core/internal/pkg/aierr"
	"github.com/jobtrail/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

// TaskTypeDownload tags model download tasks in the task store.
const TaskTypeDownload = "model:download"

const progressInterval = 2 * time.Second

type downloadPayload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type downloadResult struct {
	Path string `json:"path"`
}

// Download validates the URL and starts a background download task. The
// returned task is the handle the UI polls for progress and the terminal
// success/failure state. Duplicate requests for the same URL share one task.
func (s *Service) Download(ctx context.Context, rawURL string) (*taskqueue.Task, error) {
	filename, err := DeriveFilename(rawURL)
	if err != nil {
		return nil, err
	}

	task, created, err := s.tasks.Enqueue(ctx, TaskTypeDownload, downloadPayload{URL: rawURL, Filename: filename}, rawURL)
	if err != nil {
		return nil, err
	}
	// Only the request that created the task starts a worker. A duplicate
	// request racing the first one gets the same still-pending task back
	// and must not spawn a second writer for the same file.
	if created {
		go s.runDownload(context.Background(), task.ID, rawURL, filename)
	}
	return task, nil
}

// GetTask exposes a task record for polling.
func (s *Service) GetTask(ctx context.Context, id string) (*taskqueue.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// ListTasks returns recent download tasks, newest first.
func (s *Service) ListTasks(ctx context.Context, limit int) ([]*taskqueue.Task, error) {
	return s.tasks.List(ctx, TaskTypeDownload, limit)
}

func (s *Service) runDownload(ctx context.Context, taskID, rawURL, filename string) {
	_ = s.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, "")
	s.log.Info("model download started", zap.String("url", rawURL), zap.String("file", filename))

	dest, err := s.fetchToFile(ctx, taskID, rawURL, filename)
	if err != nil {
		s.log.Warn("model download failed", zap.String("url", rawURL), zap.Error(err))
		_ = s.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error())
		return
	}

	s.log.Info("model download complete", zap.String("path", dest))
	_ = s.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, downloadResult{Path: dest}, "")
}

// fetchToFile streams the remote file into the model directory through a
// .part file, renamed into place only on full success so a partial download
// never looks like a usable model.
func (s *Service) fetchToFile(ctx context.Context, taskID, rawURL, filename string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", aierr.Wrap(aierr.KindInvalidURL, "build download request", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", aierr.Wrap(aierr.KindNetwork, "download request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", aierr.Newf(aierr.KindNetwork, "download returned status %d", resp.StatusCode)
	}

	dest := filepath.Join(s.dir, filename)
	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", part, err)
	}

	total := resp.ContentLength
	var done int64
	lastReport := time.Now()
	buf := make([]byte, 1<<20)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				os.Remove(part)
				return "", fmt.Errorf("write %s: %w", part, writeErr)
			}
			done += int64(n)
			if time.Since(lastReport) >= progressInterval {
				lastReport = time.Now()
				_ = s.tasks.UpdateProgress(ctx, taskID, done, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(part)
			return "", aierr.Wrap(aierr.KindNetwork, "download interrupted", readErr)
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(part)
		return "", err
	}
	_ = s.tasks.UpdateProgress(ctx, taskID, done, total)

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return "", fmt.Errorf("finalize %s: %w", dest, err)
	}
	return dest, nil
}
