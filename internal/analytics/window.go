package analytics

import (
	"strings"
	"time"
)

// Window は集計期間を表す。
type Window string

const (
	Window7Days  Window = "7days"
	Window30Days Window = "30days"
	Window90Days Window = "90days"
	WindowYear   Window = "year"
)

// DefaultWindow は未知の期間指定に対して使用する期間。
const DefaultWindow = Window30Days

// ParseWindow は期間指定を解析する。"7d"などの短縮形も受け付け、未知の値は30日とする。
func ParseWindow(s string) Window {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "7days", "7d":
		return Window7Days
	case "30days", "30d":
		return Window30Days
	case "90days", "90d":
		return Window90Days
	case "year", "1y", "365d":
		return WindowYear
	default:
		return DefaultWindow
	}
}

// Start は期間の開始時刻を返す。日単位の期間は日数、1年は暦の年で遡る。
func (w Window) Start(now time.Time) time.Time {
	switch w {
	case Window7Days:
		return now.AddDate(0, 0, -7)
	case Window90Days:
		return now.AddDate(0, 0, -90)
	case WindowYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -30)
	}
}
