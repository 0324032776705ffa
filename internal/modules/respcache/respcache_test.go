package respcache

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jobtrail/core/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.AIResponseCacheModel{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPutGet(t *testing.T) {
	svc := NewService(openTestDB(t))

	if err := svc.Put("parse_job", "fp1", `{"title":"dev"}`, time.Hour); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, ok, err := svc.Get("parse_job", "fp1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Payload != `{"title":"dev"}` {
		t.Errorf("payload = %q", entry.Payload)
	}
	if entry.SizeBytes != int64(len(entry.Payload)) {
		t.Errorf("size_bytes = %d, want %d", entry.SizeBytes, len(entry.Payload))
	}

	if _, ok, _ := svc.Get("parse_job", "other"); ok {
		t.Error("unknown fingerprint should miss")
	}
	if _, ok, _ := svc.Get("extract_skills", "fp1"); ok {
		t.Error("same fingerprint under another purpose should miss")
	}
}

func TestPutOverwrite(t *testing.T) {
	svc := NewService(openTestDB(t))

	if err := svc.Put("parse_job", "fp1", "first", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := svc.Put("parse_job", "fp1", "second", time.Hour); err != nil {
		t.Fatal(err)
	}

	entry, ok, err := svc.Get("parse_job", "fp1")
	if err != nil || !ok {
		t.Fatalf("Get after overwrite: ok=%v err=%v", ok, err)
	}
	if entry.Payload != "second" {
		t.Errorf("payload = %q, want %q", entry.Payload, "second")
	}

	stats, err := svc.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntries != 1 {
		t.Errorf("overwrite created a second row: total = %d", stats.TotalEntries)
	}
}

func TestExpiredEntryIsMiss(t *testing.T) {
	svc := NewService(openTestDB(t))
	base := time.Now()
	svc.now = func() time.Time { return base }

	if err := svc.Put("parse_job", "fp1", "payload", time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := svc.Get("parse_job", "fp1"); !ok {
		t.Fatal("fresh entry should hit")
	}

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok, _ := svc.Get("parse_job", "fp1"); ok {
		t.Error("expired entry should miss")
	}

	// Expired entries stay until the sweep.
	stats, err := svc.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntries != 1 || stats.ExpiredEntries != 1 {
		t.Errorf("stats = %+v, want 1 total / 1 expired", stats)
	}

	removed, err := svc.CleanupExpired()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("CleanupExpired removed %d, want 1", removed)
	}
	removed, err = svc.CleanupExpired()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("second CleanupExpired removed %d, want 0", removed)
	}
}

func TestStatsByPurpose(t *testing.T) {
	svc := NewService(openTestDB(t))

	for i := 0; i < 3; i++ {
		if err := svc.Put("parse_job", fmt.Sprintf("fp%d", i), "0123456789", time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := svc.Put("extract_skills", fmt.Sprintf("fp%d", i), "01234", time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := svc.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 5 {
		t.Errorf("total = %d, want 5", stats.TotalEntries)
	}
	if stats.TotalSizeBytes != 3*10+2*5 {
		t.Errorf("size = %d, want 40", stats.TotalSizeBytes)
	}
	if stats.EntriesByPurpose["parse_job"] != 3 || stats.EntriesByPurpose["extract_skills"] != 2 {
		t.Errorf("by purpose = %v", stats.EntriesByPurpose)
	}
	if stats.OldestCreatedAt == nil || stats.NewestCreatedAt == nil {
		t.Error("oldest/newest should be set")
	}
}

func TestClear(t *testing.T) {
	svc := NewService(openTestDB(t))
	_ = svc.Put("parse_job", "a", "x", time.Hour)
	_ = svc.Put("parse_job", "b", "x", time.Hour)
	_ = svc.Put("extract_skills", "c", "x", time.Hour)

	n, err := svc.ClearByPurpose("parse_job")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("ClearByPurpose removed %d, want 2", n)
	}
	if _, ok, _ := svc.Get("extract_skills", "c"); !ok {
		t.Error("other purpose should survive")
	}

	n, err = svc.ClearAll()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ClearAll removed %d, want 1", n)
	}
}

func TestEvictBySize(t *testing.T) {
	svc := NewService(openTestDB(t))
	for i := 1; i <= 5; i++ {
		if err := svc.Put("parse_job", fmt.Sprintf("fp%d", i), "0123456789", time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	// 50 bytes total; fitting 25 drops the three oldest.
	removed, err := svc.EvictBySize(25)
	if err != nil {
		t.Fatalf("EvictBySize failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed %d, want 3", removed)
	}
	for _, fp := range []string{"fp1", "fp2", "fp3"} {
		if _, ok, _ := svc.Get("parse_job", fp); ok {
			t.Errorf("%s should be evicted", fp)
		}
	}
	for _, fp := range []string{"fp4", "fp5"} {
		if _, ok, _ := svc.Get("parse_job", fp); !ok {
			t.Errorf("%s should survive", fp)
		}
	}
}

func TestEvictBySizeKeepsSoleOversizedEntry(t *testing.T) {
	svc := NewService(openTestDB(t))
	big := make([]byte, 100)
	for i := range big {
		big[i] = 'x'
	}
	if err := svc.Put("parse_job", "big", string(big), time.Hour); err != nil {
		t.Fatal(err)
	}

	removed, err := svc.EvictBySize(10)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("sole oversized entry was evicted (removed=%d)", removed)
	}
	if _, ok, _ := svc.Get("parse_job", "big"); !ok {
		t.Error("sole oversized entry should remain")
	}
}

func TestEvictByCount(t *testing.T) {
	svc := NewService(openTestDB(t))
	for i := 1; i <= 5; i++ {
		if err := svc.Put("parse_job", fmt.Sprintf("fp%d", i), "x", time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := svc.EvictByCount(2)
	if err != nil {
		t.Fatalf("EvictByCount failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed %d, want 3", removed)
	}
	for _, fp := range []string{"fp4", "fp5"} {
		if _, ok, _ := svc.Get("parse_job", fp); !ok {
			t.Errorf("newest entry %s should survive", fp)
		}
	}

	removed, err = svc.EvictByCount(2)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("eviction under the limit removed %d, want 0", removed)
	}
}
