package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobtrail/core/internal/modules/provider"
	"github.com/jobtrail/core/internal/modules/respcache"
	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/aierr"
)

// Orchestrator is the single entry point for AI task invocations. It owns
// the cache-first flow: fingerprint, cache lookup, backend selection, direct
// or chunked invocation, one hybrid fallback step, cache write.
type Orchestrator struct {
	settings settings.Provider
	cache    *respcache.Service
	local    LocalBackend
	cloud    provider.Adapter
	log      *zap.Logger
}

// LocalBackend is what the orchestrator needs from the local side: it can
// invoke and it can answer availability probes.
type LocalBackend interface {
	provider.Adapter
	provider.AvailabilityProbe
}

func New(st settings.Provider, cache *respcache.Service, local LocalBackend, cloud provider.Adapter, log *zap.Logger) *Orchestrator {
	return &Orchestrator{settings: st, cache: cache, local: local, cloud: cloud, log: log}
}

// RunResult carries a task's payload plus where it came from.
type RunResult struct {
	Payload      json.RawMessage  `json:"payload"`
	Cached       bool             `json:"cached"`
	Backend      provider.Backend `json:"backend,omitempty"`
	FailedChunks []int            `json:"failed_chunks,omitempty"`
	// Warning carries KindChunkPartial when some chunks failed and the
	// payload is a best-effort merge of the rest.
	Warning     aierr.Kind `json:"warning,omitempty"`
	Fingerprint string     `json:"fingerprint"`
}

// ParsePurpose validates a purpose string coming off the wire.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(s); p {
	case PurposeParseJob, PurposeExtractProfile, PurposeExtractSkills,
		PurposeGenResume, PurposeGenCoverLetter, PurposeRewriteText, PurposeGenSummary:
		return p, nil
	}
	return "", aierr.Newf(aierr.KindValidation, "unknown purpose %q", s)
}

// Run executes one AI task. Identical requests within the purpose's TTL are
// served from the cache without touching any provider.
func (o *Orchestrator) Run(ctx context.Context, purpose Purpose, input string, opts Options) (*RunResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, aierr.New(aierr.KindValidation, "input is empty")
	}

	fp := Fingerprint(purpose, input, opts)
	if entry, ok, err := o.cache.Get(string(purpose), fp); err != nil {
		o.log.Warn("cache lookup failed", zap.Error(err))
	} else if ok {
		return &RunResult{
			Payload:     json.RawMessage(entry.Payload),
			Cached:      true,
			Fingerprint: fp,
		}, nil
	}

	cfg, err := o.settings.Current()
	if err != nil {
		return nil, err
	}
	sel, err := provider.Select(ctx, cfg, o.local)
	if err != nil {
		return nil, err
	}

	payload, failed, err := o.invoke(ctx, o.adapter(sel.Primary), cfg, purpose, input, opts)
	backend := sel.Primary
	if err != nil && sel.Fallback != "" && aierr.Transient(err) {
		o.log.Warn("primary backend failed, falling back",
			zap.String("primary", string(sel.Primary)),
			zap.String("fallback", string(sel.Fallback)),
			zap.Error(err))
		payload, failed, err = o.invoke(ctx, o.adapter(sel.Fallback), cfg, purpose, input, opts)
		backend = sel.Fallback
	}
	if err != nil {
		return nil, err
	}

	// Partial chunk results are returned but not cached; a later run should
	// get the chance to produce a complete one.
	if len(failed) == 0 {
		if err := o.cache.Put(string(purpose), fp, string(payload), purpose.ttl()); err != nil {
			o.log.Warn("cache write failed", zap.Error(err))
		}
	}

	res := &RunResult{
		Payload:      payload,
		Backend:      backend,
		FailedChunks: failed,
		Fingerprint:  fp,
	}
	if len(failed) > 0 {
		res.Warning = aierr.KindChunkPartial
	}
	return res, nil
}

func (o *Orchestrator) adapter(b provider.Backend) provider.Adapter {
	if b == provider.BackendLocal {
		return o.local
	}
	return o.cloud
}

// invoke routes between the direct path and the chunked path based on input
// length and whether the purpose merges cleanly across chunks.
func (o *Orchestrator) invoke(ctx context.Context, adapter provider.Adapter, cfg settings.AiSettings, purpose Purpose, input string, opts Options) (json.RawMessage, []int, error) {
	if purpose.chunkable() && len([]rune(input)) > chunkCharBudget {
		chunks := splitChunks(input, chunkCharBudget)
		results := o.invokeChunks(ctx, adapter, cfg, purpose, chunks, opts)
		return mergeChunks(purpose, results)
	}
	payload, err := o.invokeParsed(ctx, adapter, cfg, buildRequest(purpose, truncateText(input, directInputLimit), opts))
	return payload, nil, err
}

// invokeParsed calls the adapter and decodes the reply as JSON. A reply that
// fails to decode earns exactly one corrective re-prompt before the call
// fails.
func (o *Orchestrator) invokeParsed(ctx context.Context, adapter provider.Adapter, cfg settings.AiSettings, req provider.Request) (json.RawMessage, error) {
	raw, err := adapter.Invoke(ctx, cfg, req)
	if err != nil {
		return nil, err
	}
	payload, derr := decodeModelJSON(raw)
	if derr == nil {
		return payload, nil
	}

	o.log.Debug("model reply failed to decode, re-prompting", zap.String("adapter", adapter.Name()))
	retryReq := req
	retryReq.Prompt = req.Prompt + "\n\n" + retryPrompt
	raw, err = adapter.Invoke(ctx, cfg, retryReq)
	if err != nil {
		return nil, err
	}
	return decodeModelJSON(raw)
}

// TestResult reports the outcome of a connectivity test.
type TestResult struct {
	Backend provider.Backend `json:"backend"`
	Message string           `json:"message"`
}

// TestConnection runs a minimal round trip against the backend the given
// settings select. When cfg is nil the persisted settings are used, which
// lets the settings screen test a configuration before saving it.
func (o *Orchestrator) TestConnection(ctx context.Context, cfg *settings.AiSettings) (*TestResult, error) {
	var effective settings.AiSettings
	if cfg != nil {
		effective = *cfg
		// The settings screen round-trips the redacted key marker; swap the
		// persisted key back in so a test does not fail on the placeholder.
		if effective.APIKey == settings.RedactedKey {
			persisted, err := o.settings.Current()
			if err != nil {
				return nil, err
			}
			effective.APIKey = persisted.APIKey
		}
	} else {
		var err error
		effective, err = o.settings.Current()
		if err != nil {
			return nil, err
		}
	}
	if err := settings.Validate(effective); err != nil {
		return nil, err
	}

	sel, err := provider.Select(ctx, effective, o.local)
	if err != nil {
		return nil, err
	}
	reply, err := o.adapter(sel.Primary).Invoke(ctx, effective, provider.Request{
		System:    "Reply with exactly the word OK and nothing else.",
		Prompt:    "ping",
		MaxTokens: 8,
	})
	if err != nil {
		return nil, err
	}
	return &TestResult{
		Backend: sel.Primary,
		Message: fmt.Sprintf("%s backend responded: %s", sel.Primary, strings.TrimSpace(truncateText(reply, 120))),
	}, nil
}

// LocalAvailable reports whether the local backend could serve a request
// right now under the persisted settings.
func (o *Orchestrator) LocalAvailable(ctx context.Context) (bool, error) {
	cfg, err := o.settings.Current()
	if err != nil {
		return false, err
	}
	return o.local.LocalAvailable(ctx, cfg), nil
}
