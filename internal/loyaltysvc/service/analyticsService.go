package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/avvvet/loyalty-services/internal/loyaltysvc/models"
	"github.com/avvvet/loyalty-services/internal/loyaltysvc/store"
)

const (
	analyticsDays   = 7
	topDrinksLimit  = 8
	topDrinksWindow = 1000
	dayLayout       = "2006-01-02"
)

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DrinkCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Summary struct {
	TotalCustomers   int64        `json:"totalCustomers"`
	TotalRedemptions int64        `json:"totalRedemptions"`
	WeekStamps       int          `json:"weekStamps"`
	StampsByDay      []DayCount   `json:"stampsByDay"`
	TopDrinks        []DrinkCount `json:"topDrinks"`
}

type AnalyticsService struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
}

// NewAnalyticsService buckets days in loc, the café's local time zone.
func NewAnalyticsService(s store.Store, loc *time.Location) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{store: s, loc: loc, now: time.Now}
}

func (s *AnalyticsService) SetClock(now func() time.Time) { s.now = now }

func (s *AnalyticsService) Summary(ctx context.Context) (*Summary, error) {
	customers, err := s.store.Customers().CountActive(ctx)
	if err != nil {
		return nil, err
	}
	redemptions, err := s.store.Events().CountBySource(ctx, models.SourceRedemption)
	if err != nil {
		return nil, err
	}

	days, week, err := s.stampsByDay(ctx)
	if err != nil {
		return nil, err
	}

	top, err := s.topDrinks(ctx)
	if err != nil {
		return nil, err
	}

	return &Summary{
		TotalCustomers:   customers,
		TotalRedemptions: redemptions,
		WeekStamps:       week,
		StampsByDay:      days,
		TopDrinks:        top,
	}, nil
}

// stampsByDay counts stamps (redemptions excluded) for today and the six days
// before it, oldest first.
func (s *AnalyticsService) stampsByDay(ctx context.Context) ([]DayCount, int, error) {
	today := s.now().In(s.loc)
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, -(analyticsDays - 1))

	days := make([]DayCount, analyticsDays)
	index := make(map[string]int, analyticsDays)
	for i := range days {
		d := start.AddDate(0, 0, i).Format(dayLayout)
		days[i] = DayCount{Date: d}
		index[d] = i
	}

	events, err := s.store.Events().ListSince(ctx, start.UTC())
	if err != nil {
		return nil, 0, err
	}

	total := 0
	for _, ev := range events {
		if ev.Source == models.SourceRedemption {
			continue
		}
		if i, ok := index[ev.CreatedAt.In(s.loc).Format(dayLayout)]; ok {
			days[i].Count++
			total++
		}
	}
	return days, total, nil
}

func (s *AnalyticsService) topDrinks(ctx context.Context) ([]DrinkCount, error) {
	events, err := s.store.Events().ListRecent(ctx, topDrinksWindow)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, ev := range events {
		name := strings.TrimSpace(ev.DrinkType)
		if name == "" || ev.Source == models.SourceRedemption {
			continue
		}
		counts[name]++
	}

	out := make([]DrinkCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, DrinkCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topDrinksLimit {
		out = out[:topDrinksLimit]
	}
	return out, nil
}
