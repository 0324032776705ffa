package orchestrator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jobtrail/core/internal/models"
	"github.com/jobtrail/core/internal/modules/provider"
	"github.com/jobtrail/core/internal/modules/respcache"
	"github.com/jobtrail/core/internal/modules/settings"
	"github.com/jobtrail/core/internal/pkg/aierr"
)

type fixedSettings struct{ cfg settings.AiSettings }

func (f fixedSettings) Current() (settings.AiSettings, error) { return f.cfg, nil }

type fakeAdapter struct {
	name      string
	available bool
	calls     int
	reply     func(req provider.Request) (string, error)
}

func (f *fakeAdapter) Invoke(_ context.Context, _ settings.AiSettings, req provider.Request) (string, error) {
	f.calls++
	return f.reply(req)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) LocalAvailable(context.Context, settings.AiSettings) bool {
	return f.available
}

func newTestCache(t *testing.T) *respcache.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cache.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.AIResponseCacheModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return respcache.NewService(db)
}

func cloudOnlySettings() settings.AiSettings {
	return settings.AiSettings{
		Version:       1,
		Mode:          settings.ModeCloud,
		CloudProvider: settings.CloudOpenAI,
		APIKey:        "sk-test",
	}
}

func TestRunServesSecondCallFromCache(t *testing.T) {
	cloud := &fakeAdapter{name: "cloud", reply: func(provider.Request) (string, error) {
		return `{"skills":["Go"]}`, nil
	}}
	local := &fakeAdapter{name: "local"}
	orch := New(fixedSettings{cloudOnlySettings()}, newTestCache(t), local, cloud, zap.NewNop())

	first, err := orch.Run(context.Background(), PurposeExtractSkills, "Go developer", Options{})
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if first.Cached {
		t.Error("first run must not be served from cache")
	}
	if first.Backend != provider.BackendCloud {
		t.Errorf("backend = %s, want cloud", first.Backend)
	}
	if cloud.calls != 1 {
		t.Fatalf("cloud calls = %d, want 1", cloud.calls)
	}

	second, err := orch.Run(context.Background(), PurposeExtractSkills, "Go developer", Options{})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if !second.Cached {
		t.Error("second identical run must hit the cache")
	}
	if cloud.calls != 1 {
		t.Errorf("cache hit still invoked the provider (calls = %d)", cloud.calls)
	}
	if string(second.Payload) != string(first.Payload) {
		t.Errorf("cached payload differs: %s vs %s", second.Payload, first.Payload)
	}
	if second.Fingerprint != first.Fingerprint {
		t.Error("fingerprint changed between identical runs")
	}
}

func TestRunRejectsEmptyInput(t *testing.T) {
	orch := New(fixedSettings{cloudOnlySettings()}, newTestCache(t),
		&fakeAdapter{name: "local"}, &fakeAdapter{name: "cloud"}, zap.NewNop())

	_, err := orch.Run(context.Background(), PurposeParseJob, "   ", Options{})
	if err == nil {
		t.Fatal("empty input must be rejected")
	}
	if !aierr.Is(err, aierr.KindValidation) {
		t.Errorf("error kind = %v, want validation", aierr.KindOf(err))
	}
}

func TestRunHybridFallsBackOnTransientError(t *testing.T) {
	cloud := &fakeAdapter{name: "cloud", reply: func(provider.Request) (string, error) {
		return "", aierr.New(aierr.KindNetwork, "connection reset")
	}}
	local := &fakeAdapter{name: "local", available: true, reply: func(provider.Request) (string, error) {
		return `{"summary":"local result"}`, nil
	}}
	cfg := settings.AiSettings{
		Version:        1,
		Mode:           settings.ModeHybrid,
		CloudProvider:  settings.CloudOpenAI,
		APIKey:         "sk-test",
		LocalModelPath: "/models/m.gguf",
	}
	orch := New(fixedSettings{cfg}, newTestCache(t), local, cloud, zap.NewNop())

	result, err := orch.Run(context.Background(), PurposeGenSummary, "long article", Options{})
	if err != nil {
		t.Fatalf("Run failed despite working fallback: %v", err)
	}
	if result.Backend != provider.BackendLocal {
		t.Errorf("backend = %s, want local after fallback", result.Backend)
	}
	if cloud.calls != 1 || local.calls != 1 {
		t.Errorf("calls = cloud %d / local %d, want exactly one each", cloud.calls, local.calls)
	}
}

func TestRunDoesNotFallBackOnPermanentError(t *testing.T) {
	cloud := &fakeAdapter{name: "cloud", reply: func(provider.Request) (string, error) {
		return "", aierr.New(aierr.KindAuthentication, "invalid api key")
	}}
	local := &fakeAdapter{name: "local", available: true, reply: func(provider.Request) (string, error) {
		return `{"summary":"x"}`, nil
	}}
	cfg := settings.AiSettings{
		Version:        1,
		Mode:           settings.ModeHybrid,
		CloudProvider:  settings.CloudOpenAI,
		APIKey:         "sk-bad",
		LocalModelPath: "/models/m.gguf",
	}
	orch := New(fixedSettings{cfg}, newTestCache(t), local, cloud, zap.NewNop())

	_, err := orch.Run(context.Background(), PurposeGenSummary, "text", Options{})
	if err == nil {
		t.Fatal("authentication failure must surface")
	}
	if !aierr.Is(err, aierr.KindAuthentication) {
		t.Errorf("error kind = %v, want authentication", aierr.KindOf(err))
	}
	if local.calls != 0 {
		t.Errorf("permanent errors must not trigger fallback (local calls = %d)", local.calls)
	}
}

func TestRunRetriesOnceOnUndecodableReply(t *testing.T) {
	replies := []string{"sorry, no JSON here", `{"skills":["Go"]}`}
	cloud := &fakeAdapter{name: "cloud"}
	cloud.reply = func(req provider.Request) (string, error) {
		r := replies[0]
		if len(replies) > 1 {
			replies = replies[1:]
		}
		if cloud.calls == 2 && !strings.Contains(req.Prompt, "not valid JSON") {
			t.Error("second attempt should carry the corrective prompt")
		}
		return r, nil
	}
	orch := New(fixedSettings{cloudOnlySettings()}, newTestCache(t),
		&fakeAdapter{name: "local"}, cloud, zap.NewNop())

	result, err := orch.Run(context.Background(), PurposeExtractSkills, "Go developer", Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if cloud.calls != 2 {
		t.Errorf("calls = %d, want 2 (original plus one re-prompt)", cloud.calls)
	}
	var out struct {
		Skills []string `json:"skills"`
	}
	if err := json.Unmarshal(result.Payload, &out); err != nil || len(out.Skills) != 1 {
		t.Errorf("payload = %s", result.Payload)
	}
}

func TestRunChunkedPartialResultIsNotCached(t *testing.T) {
	para := func(word string) string {
		return strings.TrimSpace(strings.Repeat(word+" ", 1000))
	}
	input := para("alpha") + "\n\n" + para("FAILME")

	cloud := &fakeAdapter{name: "cloud", reply: func(req provider.Request) (string, error) {
		if strings.Contains(req.Prompt, "FAILME") {
			return "", aierr.New(aierr.KindNetwork, "timeout")
		}
		return `{"skills":["Go"]}`, nil
	}}
	orch := New(fixedSettings{cloudOnlySettings()}, newTestCache(t),
		&fakeAdapter{name: "local"}, cloud, zap.NewNop())

	result, err := orch.Run(context.Background(), PurposeExtractSkills, input, Options{})
	if err != nil {
		t.Fatalf("partial chunk failure should still return a result: %v", err)
	}
	if len(result.FailedChunks) == 0 {
		t.Fatal("failed chunks should be reported")
	}
	if result.Warning != aierr.KindChunkPartial {
		t.Errorf("warning = %q, want %q", result.Warning, aierr.KindChunkPartial)
	}
	callsAfterFirst := cloud.calls

	// A partial result must not satisfy the next identical run.
	result2, err := orch.Run(context.Background(), PurposeExtractSkills, input, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result2.Cached {
		t.Error("partial results must not be served from cache")
	}
	if cloud.calls == callsAfterFirst {
		t.Error("second run should invoke the provider again")
	}
}
