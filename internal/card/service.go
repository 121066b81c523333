// Package card はカードの作成・取得・更新・削除のドメインロジックを提供する。
package card

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
	"github.com/hitoshi/meishi/internal/security"
)

// 入力値の最大文字数
const (
	maxFieldLength = 255
	maxBioLength   = 2000
)

// colorPattern はテーマカラーとして受け付ける形式（#RGB または #RRGGBB）。
var colorPattern = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}){1,2}$`)

// Exposer はカードの公開IDを扱うインターフェース。
// exposure.Serviceを抽象化する。
type Exposer interface {
	EnsurePublicID(ctx context.Context, cardID, ownerID string) (string, error)
	CurrentPublicID(ctx context.Context, cardID string) (string, error)
}

// TemplateChecker はテンプレートIDの存在確認を行うインターフェース。
type TemplateChecker interface {
	Exists(id string) bool
}

// Input はカードの作成・更新の入力値。
// Template、PrimaryColor、ProfileImageURLは空の場合、作成時はデフォルト値、更新時は既存値を使用する。
// SocialLinksがnilの場合、更新時は既存のSNSリンクを維持する。
type Input struct {
	Name            string
	Email           string
	Phone           string
	Website         string
	Company         string
	Position        string
	Address         string
	Bio             string
	Template        string
	PrimaryColor    string
	ProfileImageURL string
	EnableNFC       bool
	SocialLinks     []SocialLinkInput
}

// SocialLinkInput はSNSリンクの入力値。URLが空の項目は無視する。
type SocialLinkInput struct {
	Platform string
	URL      string
}

// Service はカード管理のサービス層。
// 全ての操作は所有ユーザーに限定され、他ユーザーのカードは存在しないものとして扱う。
type Service struct {
	repo      repository.CardRepository
	exposer   Exposer
	sanitizer security.TextSanitizer
	templates TemplateChecker
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// templatesがnilの場合はテンプレートIDを検証しない。
func NewService(
	repo repository.CardRepository,
	exposer Exposer,
	sanitizer security.TextSanitizer,
	templates TemplateChecker,
) *Service {
	return &Service{
		repo:      repo,
		exposer:   exposer,
		sanitizer: sanitizer,
		templates: templates,
		now:       time.Now,
	}
}

// List はユーザーのカード一覧を作成日時の降順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Card, error) {
	cards, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("カード一覧の取得に失敗しました: %w", err)
	}
	return cards, nil
}

// Create はカードを作成し、公開IDを発行する。
// 公開IDの発行に失敗してもカードの作成は成功として扱い、PublicIDは空文字列となる。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.CardDetail, error) {
	fields, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	links, err := s.normalizeLinks(in.SocialLinks)
	if err != nil {
		return nil, err
	}

	now := s.now()
	card := &model.Card{
		ID:           uuid.New().String(),
		UserID:       userID,
		Template:     model.DefaultTemplate,
		PrimaryColor: model.DefaultPrimaryColor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	fields.apply(card)

	if err := s.repo.Create(ctx, card, links); err != nil {
		return nil, fmt.Errorf("カードの作成に失敗しました: %w", err)
	}

	publicID, err := s.exposer.EnsurePublicID(ctx, card.ID, userID)
	if err != nil {
		slog.Warn("public id issuance on create failed",
			slog.String("card_id", card.ID),
			slog.String("error", err.Error()),
		)
		publicID = ""
	}

	if links == nil {
		links = []model.SocialLink{}
	}
	return &model.CardDetail{Card: *card, SocialLinks: links, PublicID: publicID}, nil
}

// Get はカードの詳細をSNSリンクと発行済みの公開ID付きで返す。公開IDの発行は行わない。
func (s *Service) Get(ctx context.Context, userID, cardID string) (*model.CardDetail, error) {
	card, err := s.repo.FindByIDAndUser(ctx, cardID, userID)
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	if card == nil {
		return nil, model.NewCardNotFoundError(cardID)
	}

	links, err := s.repo.ListSocialLinks(ctx, card.ID)
	if err != nil {
		return nil, fmt.Errorf("SNSリンクの取得に失敗しました: %w", err)
	}
	if links == nil {
		links = []model.SocialLink{}
	}

	publicID, err := s.exposer.CurrentPublicID(ctx, card.ID)
	if err != nil {
		return nil, err
	}

	return &model.CardDetail{Card: *card, SocialLinks: links, PublicID: publicID}, nil
}

// Update はカードを更新する。
// 任意項目は入力値で置き換え（空ならクリア）、Template等の見た目の項目は空の場合に既存値を維持する。
func (s *Service) Update(ctx context.Context, userID, cardID string, in Input) (*model.CardDetail, error) {
	fields, err := s.normalize(in)
	if err != nil {
		return nil, err
	}
	var links []model.SocialLink
	if in.SocialLinks != nil {
		links, err = s.normalizeLinks(in.SocialLinks)
		if err != nil {
			return nil, err
		}
		if links == nil {
			links = []model.SocialLink{}
		}
	}

	existing, err := s.repo.FindByIDAndUser(ctx, cardID, userID)
	if err != nil {
		return nil, fmt.Errorf("カードの取得に失敗しました: %w", err)
	}
	if existing == nil {
		return nil, model.NewCardNotFoundError(cardID)
	}

	updated := *existing
	fields.apply(&updated)
	updated.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, &updated, links); err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, model.NewCardNotFoundError(cardID)
		}
		return nil, fmt.Errorf("カードの更新に失敗しました: %w", err)
	}

	return s.Get(ctx, userID, cardID)
}

// Delete はカードを削除する。SNSリンク、公開ID、スキャン記録も削除される。
func (s *Service) Delete(ctx context.Context, userID, cardID string) error {
	if err := s.repo.Delete(ctx, cardID, userID); err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return model.NewCardNotFoundError(cardID)
		}
		return fmt.Errorf("カードの削除に失敗しました: %w", err)
	}
	slog.Info("card deleted", slog.String("card_id", cardID), slog.String("user_id", userID))
	return nil
}

// cardFields は検証済みの入力値。
// 見た目の項目は空文字列の場合にカードの現在値を維持する。
type cardFields struct {
	name            string
	email           string
	phone           string
	website         *string
	company         *string
	position        *string
	address         *string
	bio             *string
	template        string
	primaryColor    string
	profileImageURL *string
	enableNFC       bool
}

func (f cardFields) apply(c *model.Card) {
	c.Name = f.name
	c.Email = f.email
	c.Phone = f.phone
	c.Website = f.website
	c.Company = f.company
	c.Position = f.position
	c.Address = f.address
	c.Bio = f.bio
	c.EnableNFC = f.enableNFC
	if f.template != "" {
		c.Template = f.template
	}
	if f.primaryColor != "" {
		c.PrimaryColor = f.primaryColor
	}
	if f.profileImageURL != nil {
		c.ProfileImageURL = f.profileImageURL
	}
}

// normalize は入力値を検証し、テキストをサニタイズする。検証はリポジトリへの書き込み前に全て完了させる。
func (s *Service) normalize(in Input) (cardFields, error) {
	f := cardFields{
		name:      s.sanitizer.SanitizeText(in.Name),
		email:     s.sanitizer.SanitizeText(in.Email),
		phone:     s.sanitizer.SanitizeText(in.Phone),
		enableNFC: in.EnableNFC,
	}
	if f.name == "" || f.email == "" || f.phone == "" {
		return cardFields{}, model.NewInvalidInputError("name, email, and phone are required fields")
	}
	for _, v := range []struct{ label, value string }{
		{"name", f.name}, {"email", f.email}, {"phone", f.phone},
	} {
		if utf8.RuneCountInString(v.value) > maxFieldLength {
			return cardFields{}, model.NewInvalidInputError(fmt.Sprintf("%s is too long", v.label))
		}
	}
	if addr, err := mail.ParseAddress(f.email); err != nil || addr.Address != f.email {
		return cardFields{}, model.NewInvalidInputError("email is not a valid address")
	}

	var err error
	if f.company, err = s.optionalText("company", in.Company, maxFieldLength); err != nil {
		return cardFields{}, err
	}
	if f.position, err = s.optionalText("position", in.Position, maxFieldLength); err != nil {
		return cardFields{}, err
	}
	if f.address, err = s.optionalText("address", in.Address, maxFieldLength); err != nil {
		return cardFields{}, err
	}
	if f.bio, err = s.optionalText("bio", in.Bio, maxBioLength); err != nil {
		return cardFields{}, err
	}
	if f.website, err = optionalURL("website", in.Website); err != nil {
		return cardFields{}, err
	}
	if f.profileImageURL, err = optionalURL("profileImageUrl", in.ProfileImageURL); err != nil {
		return cardFields{}, err
	}

	if in.Template != "" {
		if s.templates != nil && !s.templates.Exists(in.Template) {
			return cardFields{}, model.NewInvalidInputError(fmt.Sprintf("unknown template: %s", in.Template))
		}
		f.template = in.Template
	}
	if in.PrimaryColor != "" {
		if !colorPattern.MatchString(in.PrimaryColor) {
			return cardFields{}, model.NewInvalidInputError("primaryColor must be a hex color such as #4285F4")
		}
		f.primaryColor = in.PrimaryColor
	}
	return f, nil
}

func (s *Service) optionalText(label, raw string, max int) (*string, error) {
	v := s.sanitizer.SanitizeText(raw)
	if v == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(v) > max {
		return nil, model.NewInvalidInputError(fmt.Sprintf("%s is too long", label))
	}
	return &v, nil
}

func optionalURL(label, raw string) (*string, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := security.NormalizeURL(raw)
	if err != nil {
		return nil, model.NewInvalidInputError(fmt.Sprintf("%s must be an http(s) URL", label))
	}
	return &v, nil
}

// normalizeLinks はSNSリンクを検証する。URLが空の項目は捨て、プラットフォームの重複はエラーとする。
func (s *Service) normalizeLinks(in []SocialLinkInput) ([]model.SocialLink, error) {
	var links []model.SocialLink
	seen := make(map[string]bool, len(in))
	for _, l := range in {
		if l.URL == "" {
			continue
		}
		if !model.IsSocialPlatform(l.Platform) {
			return nil, model.NewInvalidInputError(fmt.Sprintf("unsupported social platform: %s", l.Platform))
		}
		if seen[l.Platform] {
			return nil, model.NewInvalidInputError(fmt.Sprintf("duplicate social platform: %s", l.Platform))
		}
		seen[l.Platform] = true

		u, err := security.NormalizeURL(l.URL)
		if err != nil {
			return nil, model.NewInvalidInputError(fmt.Sprintf("%s link must be an http(s) URL", l.Platform))
		}
		links = append(links, model.SocialLink{Platform: l.Platform, URL: u})
	}
	return links, nil
}
