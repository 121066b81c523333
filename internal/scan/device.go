package scan

import (
	"strings"

	"github.com/mssola/useragent"

	"github.com/hitoshi/meishi/internal/model"
)

// ClassifyDevice はUser-Agentから端末分類を判定する。判定できない場合はdesktopとする。
func ClassifyDevice(userAgent string) model.DeviceClass {
	if userAgent == "" {
		return model.DeviceDesktop
	}
	ua := useragent.New(userAgent)
	lower := strings.ToLower(userAgent)

	switch {
	case ua.Platform() == "iPad", strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"), strings.Contains(lower, "kindle"):
		return model.DeviceTablet
	// Androidタブレットは"Mobile"トークンを含まない
	case strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return model.DeviceTablet
	case ua.Mobile(), strings.Contains(lower, "mobile"), strings.Contains(lower, "iphone"):
		return model.DeviceMobile
	default:
		return model.DeviceDesktop
	}
}

// IsBot はクローラー等の自動アクセスかどうかを判定する。
// リンクプレビュー生成のアクセスをスキャンとして数えないために使用する。
func IsBot(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	if useragent.New(userAgent).Bot() {
		return true
	}
	lower := strings.ToLower(userAgent)
	for _, marker := range []string{"slackbot", "discordbot", "twitterbot", "facebookexternalhit", "whatsapp", "preview", "bot/", "crawler", "spider"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
