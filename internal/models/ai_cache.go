package models

import "time"

// AIResponseCacheModel stores one cached AI output, keyed by
// (purpose, fingerprint). Payload is an opaque JSON blob whose schema is
// owned by the purpose that wrote it; the cache layer never inspects it.
// The autoincrement ID doubles as insertion order for eviction tie-breaks.
type AIResponseCacheModel struct {
	ID          uint      `json:"-"           gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"modified"`
	Purpose     string    `json:"purpose"     gorm:"index:idx_purpose_fingerprint,unique;index;not null"`
	Fingerprint string    `json:"fingerprint" gorm:"index:idx_purpose_fingerprint,unique;not null"`
	Payload     string    `json:"payload"     gorm:"type:longtext;not null"`
	SizeBytes   int64     `json:"size_bytes"  gorm:"not null"`
	ExpiresAt   time.Time `json:"expires_at"  gorm:"index;not null"`
}

func (AIResponseCacheModel) TableName() string { return "ai_response_cache" }

// Expired reports whether the entry is past its TTL at the given instant.
func (m *AIResponseCacheModel) Expired(now time.Time) bool {
	return m.ExpiresAt.Before(now)
}
