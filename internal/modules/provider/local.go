package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/aierr"
	"go.uber.org/zap"
)

const localHealthTimeout = 5 * time.Second

// LocalAdapter invokes the on-device model through a llama-server-compatible
// runtime on localhost. The model handle is resolved lazily on first use and
// kept for the process lifetime. Concurrent invocations are serialized
// since on-device inference is a single scarce resource, not a pool.
type LocalAdapter struct {
	runtimeURL string
	validate   func(path string) error
	log        *zap.Logger
	client     *http.Client

	mu     sync.Mutex // serializes inference calls
	loadMu sync.Mutex // guards lazy load state
	loaded string     // model path confirmed loaded, "" until first success
	broken error      // permanent load failure, never retried
}

// NewLocalAdapter wires the adapter against the runtime endpoint. validate
// is the model-path check from the model store.
func NewLocalAdapter(runtimeURL string, requestTimeout time.Duration, validate func(path string) error, log *zap.Logger) *LocalAdapter {
	return &LocalAdapter{
		runtimeURL: strings.TrimRight(runtimeURL, "/"),
		validate:   validate,
		log:        log,
		client:     &http.Client{Timeout: requestTimeout},
	}
}

func (a *LocalAdapter) Name() string { return string(BackendLocal) }

// LocalAvailable implements the router's availability probe: the persisted
// model path must validate and the runtime must answer a health ping.
func (a *LocalAdapter) LocalAvailable(ctx context.Context, cfg settings.AiSettings) bool {
	if a.validate(cfg.LocalModelPath) != nil {
		return false
	}
	return a.ping(ctx) == nil
}

func (a *LocalAdapter) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, localHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pingCtx, http.MethodGet, a.runtimeURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return aierr.Wrap(aierr.KindNetwork, "local runtime unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return aierr.Newf(aierr.KindNetwork, "local runtime health returned status %d", resp.StatusCode)
	}
	return nil
}

// ensureLoaded performs the one-time model resolution. A failure here is
// permanent for the process: the same broken state would fail every retry
// identically.
func (a *LocalAdapter) ensureLoaded(ctx context.Context, modelPath string) error {
	a.loadMu.Lock()
	defer a.loadMu.Unlock()

	if a.broken != nil {
		return a.broken
	}
	if a.loaded == modelPath {
		return nil
	}

	if err := a.validate(modelPath); err != nil {
		// Not marked broken: the path can be repaired via cleanup/settings.
		return err
	}
	if err := a.ping(ctx); err != nil {
		a.broken = aierr.Wrap(aierr.KindConfiguration, "local model load failed; restart the local runtime", err)
		return a.broken
	}

	a.loaded = modelPath
	a.log.Info("local model ready", zap.String("path", modelPath))
	return nil
}

func (a *LocalAdapter) Invoke(ctx context.Context, cfg settings.AiSettings, req Request) (string, error) {
	if err := a.ensureLoaded(ctx, cfg.LocalModelPath); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body, _ := json.Marshal(map[string]interface{}{
		"model":       cfg.LocalModelPath,
		"messages":    messages,
		"max_tokens":  maxTokensOr(req, 1024),
		"temperature": req.Temperature,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.runtimeURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", aierr.Wrap(aierr.KindNetwork, "local inference call failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", aierr.Wrap(aierr.KindNetwork, "read local inference response", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", aierr.Newf(aierr.KindNetwork, "local runtime returned status %d", resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", aierr.Wrap(aierr.KindTotal, "unparseable local inference response", err)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", aierr.New(aierr.KindTotal, "empty response from local model")
	}
	return result.Choices[0].Message.Content, nil
}
