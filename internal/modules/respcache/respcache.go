// Package respcache is the persistent store of prior AI outputs, keyed by
// (purpose, fingerprint), with TTL plus size- and count-based eviction to
// bound storage growth.
package respcache

import (
	"errors"
	"sync"
	"time"

	"github.com/jobtrail/core/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stats summarizes the cache contents.
type Stats struct {
	TotalEntries     int64            `json:"total_entries"`
	TotalSizeBytes   int64            `json:"total_size_bytes"`
	ExpiredEntries   int64            `json:"expired_entries"`
	EntriesByPurpose map[string]int64 `json:"entries_by_purpose"`
	OldestCreatedAt  *time.Time       `json:"oldest_created_at,omitempty"`
	NewestCreatedAt  *time.Time       `json:"newest_created_at,omitempty"`
}

// Service manages the response cache table. Writes and evictions share one
// mutex so an eviction pass never removes an entry mid-write.
type Service struct {
	db *gorm.DB
	mu sync.Mutex

	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Get returns the cached payload for (purpose, fingerprint). An entry past
// its TTL counts as a miss but is left in place for the explicit sweep.
func (s *Service) Get(purpose, fingerprint string) (*models.AIResponseCacheModel, bool, error) {
	var entry models.AIResponseCacheModel
	err := s.db.Where("purpose = ? AND fingerprint = ?", purpose, fingerprint).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if entry.Expired(s.now()) {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put stores a payload, fully replacing any prior value for the same key.
func (s *Service) Put(purpose, fingerprint, payload string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := models.AIResponseCacheModel{
		Purpose:     purpose,
		Fingerprint: fingerprint,
		Payload:     payload,
		SizeBytes:   int64(len(payload)),
		ExpiresAt:   now.Add(ttl),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "purpose"}, {Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "size_bytes", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

// Stats reports cache totals and the per-purpose entry breakdown.
func (s *Service) Stats() (Stats, error) {
	stats := Stats{EntriesByPurpose: map[string]int64{}}

	type totalsRow struct {
		Count  int64
		Size   int64
		Oldest *time.Time
		Newest *time.Time
	}
	var totals totalsRow
	err := s.db.Model(&models.AIResponseCacheModel{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS size, MIN(created_at) AS oldest, MAX(created_at) AS newest").
		Scan(&totals).Error
	if err != nil {
		return Stats{}, err
	}
	stats.TotalEntries = totals.Count
	stats.TotalSizeBytes = totals.Size
	if totals.Count > 0 {
		stats.OldestCreatedAt = totals.Oldest
		stats.NewestCreatedAt = totals.Newest
	}

	if err := s.db.Model(&models.AIResponseCacheModel{}).
		Where("expires_at < ?", s.now()).
		Count(&stats.ExpiredEntries).Error; err != nil {
		return Stats{}, err
	}

	type purposeRow struct {
		Purpose string
		Count   int64
	}
	var rows []purposeRow
	if err := s.db.Model(&models.AIResponseCacheModel{}).
		Select("purpose, COUNT(*) AS count").
		Group("purpose").
		Scan(&rows).Error; err != nil {
		return Stats{}, err
	}
	for _, row := range rows {
		stats.EntriesByPurpose[row.Purpose] = row.Count
	}

	return stats, nil
}

// DB exposes the underlying handle for pagination helpers.
func (s *Service) DB() *gorm.DB { return s.db }

// ClearByPurpose removes all entries for one purpose. Returns the count.
func (s *Service) ClearByPurpose(purpose string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Where("purpose = ?", purpose).Delete(&models.AIResponseCacheModel{})
	return res.RowsAffected, res.Error
}

// ClearAll removes every entry. Returns the count.
func (s *Service) ClearAll() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Where("1 = 1").Delete(&models.AIResponseCacheModel{})
	return res.RowsAffected, res.Error
}

// CleanupExpired removes entries with expires_at strictly in the past.
// An immediate rerun removes zero.
func (s *Service) CleanupExpired() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Where("expires_at < ?", s.now()).Delete(&models.AIResponseCacheModel{})
	return res.RowsAffected, res.Error
}

// EvictBySize removes the globally oldest entries (created_at, then insertion
// order) until total size fits maxBytes. A single entry larger than the
// budget is kept only when it is the last one standing.
func (s *Service) EvictBySize(maxBytes int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type sizeRow struct {
		ID        uint
		SizeBytes int64
	}
	var rows []sizeRow
	err := s.db.Model(&models.AIResponseCacheModel{}).
		Select("id, size_bytes").
		Order("created_at ASC, id ASC").
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	var total int64
	for _, row := range rows {
		total += row.SizeBytes
	}

	// Oldest entries go first until the budget holds. When one entry alone
	// exceeds the budget it stays: evicting the sole survivor gains nothing.
	victims := make([]uint, 0)
	for _, row := range rows {
		if total <= maxBytes || len(rows)-len(victims) <= 1 {
			break
		}
		victims = append(victims, row.ID)
		total -= row.SizeBytes
	}

	if len(victims) == 0 {
		return 0, nil
	}
	res := s.db.Where("id IN ?", victims).Delete(&models.AIResponseCacheModel{})
	return res.RowsAffected, res.Error
}

// EvictByCount removes the oldest entries until at most maxEntries remain;
// the most recently created entries always survive.
func (s *Service) EvictByCount(maxEntries int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxEntries < 0 {
		maxEntries = 0
	}

	var total int64
	if err := s.db.Model(&models.AIResponseCacheModel{}).Count(&total).Error; err != nil {
		return 0, err
	}
	excess := total - maxEntries
	if excess <= 0 {
		return 0, nil
	}

	var victims []uint
	err := s.db.Model(&models.AIResponseCacheModel{}).
		Select("id").
		Order("created_at ASC, id ASC").
		Limit(int(excess)).
		Scan(&victims).Error
	if err != nil {
		return 0, err
	}

	res := s.db.Where("id IN ?", victims).Delete(&models.AIResponseCacheModel{})
	return res.RowsAffected, res.Error
}
