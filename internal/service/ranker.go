package service

import (
	"context"
	"sort"

	"fleetbook/internal/domain"
	"fleetbook/internal/models"
)

// DriverRanker orders equally-available drivers for auto-assignment. The
// candidates passed in are already filtered for status, schedule and window.
type DriverRanker interface {
	Rank(ctx context.Context, drivers []models.Driver) ([]models.Driver, error)
}

// ByIDRanker is the deterministic baseline: lowest driver id first.
type ByIDRanker struct{}

func (ByIDRanker) Rank(_ context.Context, drivers []models.Driver) ([]models.Driver, error) {
	ranked := append([]models.Driver(nil), drivers...)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].ID < ranked[j].ID })
	return ranked, nil
}

// LeastRecentlyAssignedRanker spreads work across the pool: drivers whose last
// assignment is oldest come first, never-assigned drivers before everyone.
// Ties fall back to lowest id.
type LeastRecentlyAssignedRanker struct {
	repo domain.Repository
}

func NewLeastRecentlyAssignedRanker(repo domain.Repository) *LeastRecentlyAssignedRanker {
	return &LeastRecentlyAssignedRanker{repo: repo}
}

func (r *LeastRecentlyAssignedRanker) Rank(ctx context.Context, drivers []models.Driver) ([]models.Driver, error) {
	lastAssigned, err := r.repo.GetLastAssignmentTimes(ctx)
	if err != nil {
		return nil, err
	}

	ranked := append([]models.Driver(nil), drivers...)
	sort.Slice(ranked, func(i, j int) bool {
		ti, iOK := lastAssigned[ranked[i].ID]
		tj, jOK := lastAssigned[ranked[j].ID]
		if iOK != jOK {
			return !iOK
		}
		if iOK && !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked, nil
}
