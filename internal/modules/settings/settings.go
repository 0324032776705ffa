// Package settings manages the persisted, process-wide AI settings record.
// One versioned JSON blob lives in the options table; reads come from an
// RWMutex-guarded cache, writes go through Save which validates and fully
// replaces the record.
package settings

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/jobtrail/core/internal/models"
	"github.com/jobtrail/core/internal/pkg/aierr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const optionKey = "ai_settings"

// RedactedKey is the placeholder returned in place of the stored API key.
// A save carrying this placeholder keeps the stored secret.
const RedactedKey = "********"

// Mode selects the provider strategy.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeCloud  Mode = "cloud"
	ModeHybrid Mode = "hybrid"
)

// CloudProvider identifies the remote chat-completion backend.
type CloudProvider string

const (
	CloudOpenAI           CloudProvider = "openai"
	CloudAnthropic        CloudProvider = "anthropic"
	CloudOpenAICompatible CloudProvider = "openai_compatible"
)

// AiSettings is the single process-wide AI configuration record.
type AiSettings struct {
	Version        int           `json:"version"`
	Mode           Mode          `json:"mode"`
	LocalModelPath string        `json:"local_model_path,omitempty"`
	CloudProvider  CloudProvider `json:"cloud_provider,omitempty"`
	APIKey         string        `json:"api_key,omitempty"`
	Endpoint       string        `json:"endpoint,omitempty"`
	ModelName      string        `json:"model_name,omitempty"`
}

// Default returns the first-run settings.
func Default() AiSettings {
	return AiSettings{Version: 1, Mode: ModeLocal}
}

// Redacted returns a copy safe to hand to the UI.
func (s AiSettings) Redacted() AiSettings {
	if s.APIKey != "" {
		s.APIKey = RedactedKey
	}
	return s
}

// Provider is the read-only view the orchestrator consumes, so it stays
// testable without real persistence.
type Provider interface {
	Current() (AiSettings, error)
}

// Service manages the persisted AiSettings.
type Service struct {
	db  *gorm.DB
	mu  sync.RWMutex
	cur *AiSettings
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Current returns a copy of the settings, loading from DB on first use.
func (s *Service) Current() (AiSettings, error) {
	s.mu.RLock()
	if s.cur != nil {
		defer s.mu.RUnlock()
		return *s.cur, nil
	}
	s.mu.RUnlock()

	return s.load()
}

func (s *Service) load() (AiSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		return *s.cur, nil
	}

	var opt models.OptionModel
	err := s.db.Where("name = ?", optionKey).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := Default()
		s.cur = &defaults
		if err := s.persist(defaults); err != nil {
			return AiSettings{}, err
		}
		return defaults, nil
	}
	if err != nil {
		return AiSettings{}, err
	}

	cur := Default()
	if err := json.Unmarshal([]byte(opt.Value), &cur); err != nil {
		return AiSettings{}, err
	}
	s.cur = &cur
	return cur, nil
}

// Save validates and fully replaces the stored settings. The incoming record
// may carry RedactedKey to keep the current secret. The version counter is
// bumped on every successful save.
func (s *Service) Save(incoming AiSettings) (AiSettings, error) {
	current, err := s.Current()
	if err != nil {
		return AiSettings{}, err
	}

	next := normalize(incoming)
	if next.APIKey == RedactedKey {
		next.APIKey = current.APIKey
	}
	if err := Validate(next); err != nil {
		return AiSettings{}, err
	}
	next.Version = current.Version + 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(next); err != nil {
		return AiSettings{}, err
	}
	s.cur = &next
	return next, nil
}

// ClearLocalModelPath empties the persisted model path. Returns whether the
// record changed.
func (s *Service) ClearLocalModelPath() (bool, error) {
	current, err := s.Current()
	if err != nil {
		return false, err
	}
	if current.LocalModelPath == "" {
		return false, nil
	}
	current.LocalModelPath = ""
	current.Version++

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(current); err != nil {
		return false, err
	}
	s.cur = &current
	return true, nil
}

func (s *Service) persist(v AiSettings) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	opt := models.OptionModel{Name: optionKey, Value: string(raw)}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&opt).Error
}

func normalize(v AiSettings) AiSettings {
	v.Mode = Mode(strings.ToLower(strings.TrimSpace(string(v.Mode))))
	v.CloudProvider = CloudProvider(strings.ToLower(strings.TrimSpace(string(v.CloudProvider))))
	v.LocalModelPath = strings.TrimSpace(v.LocalModelPath)
	v.APIKey = strings.TrimSpace(v.APIKey)
	v.Endpoint = strings.TrimRight(strings.TrimSpace(v.Endpoint), "/")
	v.ModelName = strings.TrimSpace(v.ModelName)
	return v
}

// Validate rejects records that cannot back any provider call.
func Validate(v AiSettings) error {
	switch v.Mode {
	case ModeLocal, ModeCloud, ModeHybrid:
	default:
		return aierr.Newf(aierr.KindValidation, "unknown mode %q", v.Mode)
	}

	if v.Mode == ModeCloud || (v.Mode == ModeHybrid && v.APIKey != "") {
		switch v.CloudProvider {
		case CloudOpenAI, CloudAnthropic, CloudOpenAICompatible:
		case "":
			if v.Mode == ModeCloud {
				return aierr.New(aierr.KindValidation, "cloud mode requires cloud_provider")
			}
		default:
			return aierr.Newf(aierr.KindValidation, "unknown cloud_provider %q", v.CloudProvider)
		}
	}
	if v.Mode == ModeCloud && v.APIKey == "" {
		return aierr.New(aierr.KindValidation, "cloud mode requires api_key")
	}
	return nil
}
