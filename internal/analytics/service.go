// Package analytics はスキャン記録の期間集計を提供する。
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/meishi/internal/model"
	"github.com/hitoshi/meishi/internal/repository"
)

// TopCardsLimit は上位カード一覧の最大件数。
const TopCardsLimit = 5

// Report は期間集計の結果。
type Report struct {
	Window       Window
	Since        time.Time
	TotalCards   int
	NewCards     int
	TotalScans   int
	QRScans      int
	NFCScans     int
	ScanActivity []DayActivity // スキャンのある日のみ、日付昇順
	TopCards     []TopCard     // 最大TopCardsLimit件
	ScanMethods  []Share
	DeviceTypes  []Share
}

// DayActivity は1日分のスキャン数。DateはUTCの"2006-01-02"形式。
type DayActivity struct {
	Date  string
	Scans int
}

// TopCard はスキャン数上位のカード。
type TopCard struct {
	CardID string
	Name   string
	Scans  int
}

// Share は内訳の1項目。Percentageは整数パーセントで、合計が0の場合は0。
type Share struct {
	Label      string
	Count      int
	Percentage int
}

// Service は期間集計のサービス層。
type Service struct {
	repo repository.AnalyticsRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.AnalyticsRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Aggregate は所有ユーザーのカード全体について期間内の集計を行う。
// 全クエリを1つのスナップショット内で実行するため、集計の途中で記録されたスキャンによって
// 合計と内訳が食い違うことはない。
func (s *Service) Aggregate(ctx context.Context, ownerID string, window Window) (*Report, error) {
	since := window.Start(s.now())

	var (
		totalCards, newCards int
		byType               map[model.ScanType]int
		byDevice             map[model.DeviceClass]int
		days                 []repository.DayCount
		top                  []repository.CardScanCount
	)

	err := s.repo.Snapshot(ctx, func(repo repository.AnalyticsRepository) (err error) {
		if totalCards, err = repo.CountCards(ctx, ownerID); err != nil {
			return err
		}
		if newCards, err = repo.CountCardsSince(ctx, ownerID, since); err != nil {
			return err
		}
		if byType, err = repo.CountScansByType(ctx, ownerID, since); err != nil {
			return err
		}
		if byDevice, err = repo.CountScansByDevice(ctx, ownerID, since); err != nil {
			return err
		}
		if days, err = repo.DailyScans(ctx, ownerID, since); err != nil {
			return err
		}
		top, err = repo.TopCards(ctx, ownerID, since, TopCardsLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("集計に失敗しました: %w", err)
	}

	report := &Report{
		Window:     window,
		Since:      since,
		TotalCards: totalCards,
		NewCards:   newCards,
		QRScans:    byType[model.ScanTypeQR],
		NFCScans:   byType[model.ScanTypeNFC],
	}
	report.TotalScans = report.QRScans + report.NFCScans

	report.ScanActivity = make([]DayActivity, 0, len(days))
	for _, d := range days {
		if d.Count > 0 {
			report.ScanActivity = append(report.ScanActivity, DayActivity{Date: d.Day, Scans: d.Count})
		}
	}
	sort.SliceStable(report.ScanActivity, func(i, j int) bool {
		return report.ScanActivity[i].Date < report.ScanActivity[j].Date
	})

	if len(top) > TopCardsLimit {
		top = top[:TopCardsLimit]
	}
	report.TopCards = make([]TopCard, len(top))
	for i, c := range top {
		report.TopCards[i] = TopCard{CardID: c.CardID, Name: c.Name, Scans: c.Count}
	}

	report.ScanMethods = shares(
		[]string{string(model.ScanTypeQR), string(model.ScanTypeNFC)},
		[]int{report.QRScans, report.NFCScans},
	)
	report.DeviceTypes = shares(
		[]string{string(model.DeviceMobile), string(model.DeviceTablet), string(model.DeviceDesktop)},
		[]int{byDevice[model.DeviceMobile], byDevice[model.DeviceTablet], byDevice[model.DeviceDesktop]},
	)

	return report, nil
}

// shares は件数を整数パーセントに変換する。
// 最大剰余法で丸めるため、合計が0でなければパーセントの和は常に100になる。
func shares(labels []string, counts []int) []Share {
	out := make([]Share, len(labels))
	total := 0
	for i, c := range counts {
		out[i] = Share{Label: labels[i], Count: c}
		total += c
	}
	if total == 0 {
		return out
	}

	type rem struct {
		idx int
		r   int
	}
	rems := make([]rem, len(counts))
	assigned := 0
	for i, c := range counts {
		out[i].Percentage = c * 100 / total
		assigned += out[i].Percentage
		rems[i] = rem{idx: i, r: c * 100 % total}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].r > rems[b].r })
	for k := 0; k < 100-assigned; k++ {
		out[rems[k].idx].Percentage++
	}
	return out
}
