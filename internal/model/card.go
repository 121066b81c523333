package model

import "time"

// DefaultTemplate はテンプレート未指定時に使用するカードテンプレート。
const DefaultTemplate = "template1"

// DefaultPrimaryColor はテーマカラー未指定時に使用する色。
const DefaultPrimaryColor = "#4285F4"

// Card はデジタル名刺を表す。
// 作成したユーザーが唯一の所有者であり、所有者のみが変更できる。
type Card struct {
	ID              string
	UserID          string
	Name            string
	Email           string
	Phone           string
	Website         *string
	Company         *string
	Position        *string
	Address         *string
	Bio             *string
	Template        string
	PrimaryColor    string
	ProfileImageURL *string
	EnableNFC       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SocialLink はカードに紐づくSNSリンクを表す。
// プラットフォームはカードごとに一意。
type SocialLink struct {
	ID       string
	CardID   string
	Platform string
	URL      string
}

// CardDetail はカードとSNSリンク、公開IDをまとめた読み取り用の構造体。
// PublicID は公開されていない場合は空文字列。
type CardDetail struct {
	Card
	SocialLinks []SocialLink
	PublicID    string
}

// Exposure はカードと公開IDの1対1の紐付けを表す。
// 公開IDは全カードを通じて一意であり、カードが削除されるまで変化しない。
type Exposure struct {
	ID        string
	CardID    string
	PublicID  string
	CreatedAt time.Time
}

// SocialPlatforms はSNSリンクとして登録可能なプラットフォーム。
var SocialPlatforms = []string{
	"linkedin",
	"twitter",
	"facebook",
	"instagram",
	"github",
	"youtube",
	"tiktok",
}

// IsSocialPlatform は登録可能なプラットフォーム名かどうかを判定する。
func IsSocialPlatform(platform string) bool {
	for _, p := range SocialPlatforms {
		if p == platform {
			return true
		}
	}
	return false
}
