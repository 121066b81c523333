package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
)

// CardRepo はCardRepositoryのインメモリ実装。
type CardRepo struct{ s *Store }

// ExposureRepo はExposureRepositoryのインメモリ実装。
type ExposureRepo struct{ s *Store }

func (s *Store) Cards() *CardRepo         { return &CardRepo{s} }
func (s *Store) Exposures() *ExposureRepo { return &ExposureRepo{s} }

func checkLinks(links []model.SocialLink) error {
	seen := make(map[string]bool, len(links))
	for _, l := range links {
		if seen[l.Platform] {
			return fmt.Errorf("duplicate platform: %s", l.Platform)
		}
		seen[l.Platform] = true
	}
	return nil
}

func (r *CardRepo) storeLinksLocked(cardID string, links []model.SocialLink) {
	stored := make([]model.SocialLink, len(links))
	for i := range links {
		if links[i].ID == "" {
			links[i].ID = uuid.New().String()
		}
		links[i].CardID = cardID
		stored[i] = links[i]
	}
	r.s.links[cardID] = stored
}

func (r *CardRepo) Create(_ context.Context, card *model.Card, links []model.SocialLink) error {
	if err := checkLinks(links); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[card.UserID]; !ok {
		return fmt.Errorf("user does not exist: %s", card.UserID)
	}
	r.s.cards[card.ID] = cloneCard(card)
	r.storeLinksLocked(card.ID, links)
	return nil
}

func (r *CardRepo) FindByIDAndUser(_ context.Context, id, userID string) (*model.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	return cloneCard(c), nil
}

func (r *CardRepo) FindByID(_ context.Context, id string) (*model.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return nil, nil
	}
	return cloneCard(c), nil
}

func (r *CardRepo) ListByUserID(_ context.Context, userID string) ([]*model.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Card
	for _, c := range r.s.cards {
		if c.UserID == userID {
			out = append(out, cloneCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *CardRepo) ListSocialLinks(_ context.Context, cardID string) ([]model.SocialLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedLinks(r.s.links[cardID]), nil
}

func (r *CardRepo) Update(_ context.Context, card *model.Card, links []model.SocialLink) error {
	if err := checkLinks(links); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.cards[card.ID]
	if !ok || existing.UserID != card.UserID {
		return repository.ErrCardNotFound
	}
	updated := cloneCard(card)
	updated.CreatedAt = existing.CreatedAt
	r.s.cards[card.ID] = updated
	if links != nil {
		r.storeLinksLocked(card.ID, links)
	}
	return nil
}

func (r *CardRepo) Delete(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok || c.UserID != userID {
		return repository.ErrCardNotFound
	}
	r.s.deleteCardLocked(id)
	return nil
}

func (r *ExposureRepo) FindByCardID(_ context.Context, cardID string) (*model.Exposure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.exposures[cardID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *ExposureRepo) FindByPublicID(_ context.Context, publicID string) (*model.Exposure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cardID, ok := r.s.publicIDs[publicID]
	if !ok {
		return nil, nil
	}
	cp := *r.s.exposures[cardID]
	return &cp, nil
}

// Create はcard_id・public_idの一意制約と、カードへの外部キーを検査して登録する。
func (r *ExposureRepo) Create(_ context.Context, exposure *model.Exposure) error {
	if hook := r.s.BeforeExposureCreate; hook != nil {
		hook(exposure.CardID)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.exposures[exposure.CardID]; ok {
		return repository.ErrExposureExists
	}
	if _, ok := r.s.publicIDs[exposure.PublicID]; ok {
		return repository.ErrPublicIDTaken
	}
	if _, ok := r.s.cards[exposure.CardID]; !ok {
		return repository.ErrCardNotFound
	}
	cp := *exposure
	r.s.exposures[exposure.CardID] = &cp
	r.s.publicIDs[exposure.PublicID] = exposure.CardID
	return nil
}

// Seed は制約検査なしで公開IDを登録する。既存データの再現に使用する。
func (r *ExposureRepo) Seed(cardID, publicID string) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.exposures[cardID] = &model.Exposure{ID: uuid.New().String(), CardID: cardID, PublicID: publicID}
	r.s.publicIDs[publicID] = cardID
}

var (
	_ repository.CardRepository     = (*CardRepo)(nil)
	_ repository.ExposureRepository = (*ExposureRepo)(nil)
)
