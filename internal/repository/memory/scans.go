package memory

import (
	"context"
	"sort"
	"time"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
)

// ScanRepo はScanRepositoryのインメモリ実装。
type ScanRepo struct{ s *Store }

// AnalyticsRepo はAnalyticsRepositoryのインメモリ実装。
// PostgreSQL実装のSQLと同じ絞り込み・並び順で集計する。
type AnalyticsRepo struct{ s *Store }

func (s *Store) Scans() *ScanRepo          { return &ScanRepo{s} }
func (s *Store) Analytics() *AnalyticsRepo { return &AnalyticsRepo{s} }

func (r *ScanRepo) Create(_ context.Context, event *model.ScanEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cards[event.CardID]; !ok {
		return repository.ErrCardNotFound
	}
	r.s.scans = append(r.s.scans, *event)
	return nil
}

func (r *ScanRepo) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.scans[:0]
	var n int64
	for _, ev := range r.s.scans {
		if ev.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	r.s.scans = kept
	return n, nil
}

// Snapshot はカードとスキャンを複製した時点のデータでfnを実行する。
func (r *AnalyticsRepo) Snapshot(_ context.Context, fn func(repository.AnalyticsRepository) error) error {
	r.s.mu.Lock()
	snap := NewStore()
	for id, c := range r.s.cards {
		cp := *c
		snap.cards[id] = &cp
	}
	snap.scans = append([]model.ScanEvent(nil), r.s.scans...)
	r.s.mu.Unlock()
	return fn(snap.Analytics())
}

// ownedScansLocked は所有ユーザーのカードに対する期間内のスキャンを返す。
func (r *AnalyticsRepo) ownedScansLocked(userID string, since time.Time) []model.ScanEvent {
	var out []model.ScanEvent
	for _, ev := range r.s.scans {
		c, ok := r.s.cards[ev.CardID]
		if !ok || c.UserID != userID || ev.CreatedAt.Before(since) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (r *AnalyticsRepo) CountCards(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.cards {
		if c.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *AnalyticsRepo) CountCardsSince(_ context.Context, userID string, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.cards {
		if c.UserID == userID && !c.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *AnalyticsRepo) CountScansByType(_ context.Context, userID string, since time.Time) (map[model.ScanType]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[model.ScanType]int)
	for _, ev := range r.ownedScansLocked(userID, since) {
		out[ev.ScanType]++
	}
	return out, nil
}

func (r *AnalyticsRepo) CountScansByDevice(_ context.Context, userID string, since time.Time) (map[model.DeviceClass]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[model.DeviceClass]int)
	for _, ev := range r.ownedScansLocked(userID, since) {
		out[ev.DeviceClass]++
	}
	return out, nil
}

func (r *AnalyticsRepo) DailyScans(_ context.Context, userID string, since time.Time) ([]repository.DayCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[string]int)
	for _, ev := range r.ownedScansLocked(userID, since) {
		counts[utcDay(ev.CreatedAt)]++
	}
	out := make([]repository.DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, repository.DayCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (r *AnalyticsRepo) TopCards(_ context.Context, userID string, since time.Time, limit int) ([]repository.CardScanCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[string]int)
	for _, ev := range r.ownedScansLocked(userID, since) {
		counts[ev.CardID]++
	}
	out := []repository.CardScanCount{}
	for id, c := range r.s.cards {
		if c.UserID == userID {
			out = append(out, repository.CardScanCount{CardID: id, Name: c.Name, Count: counts[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CardID < out[j].CardID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ repository.ScanRepository      = (*ScanRepo)(nil)
	_ repository.AnalyticsRepository = (*AnalyticsRepo)(nil)
)
