// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/meishi/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はパスワードログイン用のユーザーを作成する。
	// メールアドレスが登録済みの場合はErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// メールアドレスが登録済みの場合はErrEmailTaken、identityが紐付け済みの場合はErrIdentityLinkedを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、cards、team_membersはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// CardRepository はカードとSNSリンクの永続化インターフェース。
// 取得・更新・削除はすべて所有ユーザーで絞り込む。
type CardRepository interface {
	// Create はカードとSNSリンクを同一トランザクションで作成する。
	Create(ctx context.Context, card *model.Card, links []model.SocialLink) error

	// FindByIDAndUser は所有者が一致するカードを取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.Card, error)

	// FindByID は所有者を問わずカードを取得する。公開ビュー専用。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Card, error)

	// ListByUserID はユーザーのカード一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Card, error)

	// ListSocialLinks はカードのSNSリンクをプラットフォーム名順で返す。
	ListSocialLinks(ctx context.Context, cardID string) ([]model.SocialLink, error)

	// Update はカードを更新する。linksがnilでない場合はSNSリンクを全件置き換える。
	// 所有者が一致するカードが無い場合はErrCardNotFoundを返す。
	Update(ctx context.Context, card *model.Card, links []model.SocialLink) error

	// Delete は所有者が一致するカードを削除する。
	// SNSリンク、公開ID、スキャン記録はCASCADE削除される。
	Delete(ctx context.Context, id, userID string) error
}

// ExposureRepository はカード公開IDの永続化インターフェース。
type ExposureRepository interface {
	// FindByCardID はカードの公開IDを取得する。見つからない場合はnilを返す。
	FindByCardID(ctx context.Context, cardID string) (*model.Exposure, error)

	// FindByPublicID は公開IDから公開情報を取得する。見つからない場合はnilを返す。
	FindByPublicID(ctx context.Context, publicID string) (*model.Exposure, error)

	// Create は公開IDを登録する。
	// カードに既に公開IDがある場合はErrExposureExists、公開IDが使用済みの場合はErrPublicIDTakenを返す。
	Create(ctx context.Context, exposure *model.Exposure) error
}

// ScanRepository はスキャン記録の永続化インターフェース。
type ScanRepository interface {
	// Create はスキャンを記録する。カードが存在しない場合はErrCardNotFoundを返す。
	Create(ctx context.Context, event *model.ScanEvent) error

	// DeleteOlderThan は指定日時より前のスキャン記録を削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// DayCount は1日分のスキャン数。Dayは UTC の "2006-01-02" 形式。
type DayCount struct {
	Day   string
	Count int
}

// CardScanCount はカードごとのスキャン数。
type CardScanCount struct {
	CardID string
	Name   string
	Count  int
}

// AnalyticsRepository は集計クエリのインターフェース。
// すべてのクエリはcards.user_idで所有ユーザーに絞り込む。
type AnalyticsRepository interface {
	CountCards(ctx context.Context, userID string) (int, error)
	CountCardsSince(ctx context.Context, userID string, since time.Time) (int, error)
	CountScansByType(ctx context.Context, userID string, since time.Time) (map[model.ScanType]int, error)
	CountScansByDevice(ctx context.Context, userID string, since time.Time) (map[model.DeviceClass]int, error)
	// DailyScans はスキャンが1件以上ある日のみを日付昇順で返す。
	DailyScans(ctx context.Context, userID string, since time.Time) ([]DayCount, error)
	// TopCards はスキャン数の降順、同数の場合はカードIDの昇順で最大limit件を返す。
	TopCards(ctx context.Context, userID string, since time.Time, limit int) ([]CardScanCount, error)
	// Snapshot はfn内のクエリがすべて同じ時点のデータを参照するようにして実行する。
	Snapshot(ctx context.Context, fn func(AnalyticsRepository) error) error
}

// TeamRepository はチームと所属の永続化インターフェース。
type TeamRepository interface {
	// CreateWithMembership はチームと作成者の所属を同一トランザクションで作成する。
	CreateWithMembership(ctx context.Context, team *model.Team, membership *model.Membership) error

	// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Team, error)

	// FindMembership はチームとユーザーの所属を取得する。見つからない場合はnilを返す。
	FindMembership(ctx context.Context, teamID, userID string) (*model.Membership, error)

	// ListByUserID はユーザーの所属一覧をチーム情報付きで返す。
	ListByUserID(ctx context.Context, userID string) ([]model.MembershipWithTeam, error)

	// ListMembers はチームのメンバー一覧をユーザー情報付きで返す。
	ListMembers(ctx context.Context, teamID string) ([]model.MembershipWithUser, error)

	// AddMember は所属を作成する。既に所属している場合はErrDuplicateMembershipを返す。
	AddMember(ctx context.Context, membership *model.Membership) error
}
