package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/aierr"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
	"go.uber.org/zap"
)

const (
	cloudRequestTimeout = 90 * time.Second
	cloudMaxRetries     = 2
	cloudBackoffBase    = 2 * time.Second

	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
)

// CloudAdapter invokes the configured remote chat-completion API. Transient
// failures are retried with backoff before surfacing; authentication errors
// surface immediately with an actionable message.
type CloudAdapter struct {
	log    *zap.Logger
	client *http.Client
}

func NewCloudAdapter(log *zap.Logger) *CloudAdapter {
	return &CloudAdapter{
		log:    log,
		client: &http.Client{Timeout: cloudRequestTimeout},
	}
}

func (a *CloudAdapter) Name() string { return string(BackendCloud) }

func (a *CloudAdapter) Invoke(ctx context.Context, cfg settings.AiSettings, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= cloudMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := cloudBackoffBase << (attempt - 1)
			a.log.Debug("cloud retry", zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return "", aierr.Wrap(aierr.KindNetwork, "cloud call cancelled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		text, err := a.invokeOnce(ctx, cfg, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !aierr.Transient(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (a *CloudAdapter) invokeOnce(ctx context.Context, cfg settings.AiSettings, req Request) (string, error) {
	if cfg.CloudProvider == settings.CloudOpenAICompatible {
		return a.callOpenAICompatible(ctx, cfg, req)
	}

	model, err := buildLanguageModel(cfg)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, cloudRequestTimeout)
	defer cancel()

	resp, err := jetai.GenerateText(
		callCtx,
		buildPromptMessages(req),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(maxTokensOr(req, 1024)),
	)
	if err != nil {
		return "", classifyCloudErr(err)
	}
	return extractTextFromResponse(resp)
}

// callOpenAICompatible performs a plain chat-completions POST against a
// custom endpoint.
func (a *CloudAdapter) callOpenAICompatible(ctx context.Context, cfg settings.AiSettings, req Request) (string, error) {
	endpoint := normalizeCompatibleEndpoint(cfg.Endpoint)
	model := strings.TrimSpace(cfg.ModelName)
	if model == "" {
		model = defaultOpenAIModel
	}

	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body, _ := json.Marshal(map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"max_tokens":  maxTokensOr(req, 1024),
		"temperature": req.Temperature,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(cfg.APIKey))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", classifyCloudErr(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", aierr.Wrap(aierr.KindNetwork, "read cloud response", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", classifyStatus(resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", aierr.Wrap(aierr.KindTotal, "unparseable cloud response", err)
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return "", aierr.Newf(aierr.KindTotal, "cloud error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", aierr.New(aierr.KindTotal, "empty response from cloud provider")
	}
	return result.Choices[0].Message.Content, nil
}

func buildLanguageModel(cfg settings.AiSettings) (jetapi.LanguageModel, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, aierr.New(aierr.KindConfiguration, "cloud provider api key is empty")
	}

	modelID := strings.TrimSpace(cfg.ModelName)
	endpoint := strings.TrimSpace(cfg.Endpoint)

	if cfg.CloudProvider == settings.CloudAnthropic {
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil
	}

	if modelID == "" {
		modelID = defaultOpenAIModel
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), nil
}

func buildPromptMessages(req Request) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: req.System})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(req.Prompt)})
	return messages
}

func extractTextFromResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", aierr.New(aierr.KindTotal, "empty response from cloud provider")
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", aierr.New(aierr.KindTotal, "empty response from cloud provider")
	}
	return text, nil
}

// classifyCloudErr tags transport-level failures so callers can branch on
// the kind rather than message text.
func classifyCloudErr(err error) error {
	if err == nil {
		return nil
	}
	var existing *aierr.Error
	if errors.As(err, &existing) {
		return err
	}

	var openaiErr *openaiclient.Error
	if errors.As(err, &openaiErr) {
		return classifyStatus(openaiErr.StatusCode, openaiErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return aierr.Wrap(aierr.KindNetwork, "cloud call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return aierr.Wrap(aierr.KindNetwork, "cloud call failed", err)
	}
	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return aierr.Wrap(aierr.KindNetwork, "cloud call failed", err)
	}

	return aierr.Wrap(aierr.KindTotal, "cloud provider rejected the request", err)
}

func classifyStatus(status int, detail string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return aierr.Newf(aierr.KindAuthentication,
			"cloud provider rejected the API key (status %d); check AI settings", status)
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return aierr.Newf(aierr.KindNetwork, "cloud provider unavailable (status %d)", status)
	default:
		return aierr.New(aierr.KindTotal, fmt.Sprintf("cloud request failed (status %d): %s", status, detail))
	}
}

func maxTokensOr(req Request, def int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return def
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		if path == "" {
			path = "/v1"
		} else {
			path += "/v1"
		}
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

func normalizeCompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		cleaned := strings.TrimRight(base, "/")
		return strings.TrimSuffix(cleaned, "/v1")
	}

	path := strings.TrimRight(parsed.Path, "/")
	path = strings.TrimSuffix(path, "/v1")
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
