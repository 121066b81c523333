// Package memory はrepositoryインターフェースのインメモリ実装を提供する。
// PostgreSQLの一意制約と外部キーのCASCADE削除を同じ規則で再現する。
// サービス層と統合テストの状態を持つテストダブルとして使用する。
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/meishi/internal/model"
)

// Store は全リポジトリが共有するインメモリの状態。
type Store struct {
	mu sync.Mutex

	users      map[string]*model.User
	identities map[string]*model.Identity
	sessions   map[string]*model.Session
	cards      map[string]*model.Card
	links      map[string][]model.SocialLink // card_id -> links
	exposures  map[string]*model.Exposure    // card_id -> exposure
	publicIDs  map[string]string             // public_id -> card_id
	scans      []model.ScanEvent
	teams      map[string]*model.Team
	members    map[string]*model.Membership // team_id + "/" + user_id

	// BeforeExposureCreate はExposureRepo.Createの制約検査直前に呼ばれる。競合の再現に使用する。
	BeforeExposureCreate func(cardID string)
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*model.User),
		identities: make(map[string]*model.Identity),
		sessions:   make(map[string]*model.Session),
		cards:      make(map[string]*model.Card),
		links:      make(map[string][]model.SocialLink),
		exposures:  make(map[string]*model.Exposure),
		publicIDs:  make(map[string]string),
		teams:      make(map[string]*model.Team),
		members:    make(map[string]*model.Membership),
	}
}

// ExposureCount は登録済みの公開ID数を返す。
func (s *Store) ExposureCount(cardID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exposures[cardID]; ok {
		return 1
	}
	return 0
}

// ScanEvents は記録済みスキャンのコピーを返す。
func (s *Store) ScanEvents() []model.ScanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScanEvent, len(s.scans))
	copy(out, s.scans)
	return out
}

// MemberCount はチームの所属数を返す。
func (s *Store) MemberCount(teamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.members {
		if m.TeamID == teamID {
			n++
		}
	}
	return n
}

// deleteCardLocked はカードと従属データを削除する。呼び出し側でロックを保持すること。
func (s *Store) deleteCardLocked(cardID string) {
	delete(s.cards, cardID)
	delete(s.links, cardID)
	if e, ok := s.exposures[cardID]; ok {
		delete(s.publicIDs, e.PublicID)
		delete(s.exposures, cardID)
	}
	kept := s.scans[:0]
	for _, ev := range s.scans {
		if ev.CardID != cardID {
			kept = append(kept, ev)
		}
	}
	s.scans = kept
}

func cloneCard(c *model.Card) *model.Card {
	cp := *c
	return &cp
}

func sortedLinks(links []model.SocialLink) []model.SocialLink {
	out := make([]model.SocialLink, len(links))
	copy(out, links)
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
