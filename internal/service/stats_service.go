package service

import (
	"context"
	"time"

	"github.com/brokerdesk/offer-service/internal/domain/entity"
	"github.com/brokerdesk/offer-service/internal/repository"
)

const noHandle = "(no_username)"

// WindowStats holds the status-event counts of one half-open time
// window [From, To). Every workflow status is present in every map,
// zero-filled, so consumers never branch on missing keys.
type WindowStats struct {
	From           time.Time
	To             time.Time
	TotalsByStatus map[entity.Status]int
	ByActor        map[string]map[entity.Status]int
}

// Report covers the three rolling windows anchored at "now".
type Report struct {
	Day   WindowStats
	Month WindowStats
	Year  WindowStats
}

// StatsService aggregates the status log on demand. Pure read, safe
// to run concurrently with writers.
type StatsService struct {
	repo repository.OfferRepository
	loc  *time.Location
}

func NewStatsService(repo repository.OfferRepository, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatsService{repo: repo, loc: loc}
}

func (s *StatsService) Aggregate(ctx context.Context, now time.Time) (*Report, error) {
	now = now.In(s.loc)

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, s.loc)

	day, err := s.window(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	month, err := s.window(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	year, err := s.window(ctx, yearStart, yearStart.AddDate(1, 0, 0))
	if err != nil {
		return nil, err
	}

	return &Report{Day: day, Month: month, Year: year}, nil
}

func (s *StatsService) window(ctx context.Context, from, to time.Time) (WindowStats, error) {
	stats := WindowStats{
		From:           from,
		To:             to,
		TotalsByStatus: zeroTotals(),
		ByActor:        make(map[string]map[entity.Status]int),
	}

	events, err := s.repo.StatusEventsBetween(ctx, from.UTC(), to.UTC())
	if err != nil {
		return WindowStats{}, err
	}

	for _, ev := range events {
		stats.TotalsByStatus[ev.Status]++

		handle := ev.ActorHandle
		if handle == "" {
			handle = noHandle
		}
		perActor, ok := stats.ByActor[handle]
		if !ok {
			perActor = zeroTotals()
			stats.ByActor[handle] = perActor
		}
		perActor[ev.Status]++
	}
	return stats, nil
}

func zeroTotals() map[entity.Status]int {
	m := make(map[entity.Status]int, len(entity.AllStatuses))
	for _, st := range entity.AllStatuses {
		m[st] = 0
	}
	return m
}
