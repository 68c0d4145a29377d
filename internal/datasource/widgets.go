package datasource

import (
	"context"

	"github.com/seenimoa/finboard/internal/prompts"
	"github.com/seenimoa/finboard/pkg/models"
	"github.com/seenimoa/finboard/pkg/utils"
)

// LatestUpdates fetches the homepage headline ticker.
func (s *Service) LatestUpdates(ctx context.Context) ([]models.LatestUpdate, error) {
	var updates []models.LatestUpdate
	if _, err := s.fetchJSON(ctx, OpLatestUpdates, nil, s.model, prompts.LatestUpdates(), &updates); err != nil {
		return nil, err
	}
	if updates == nil {
		return []models.LatestUpdate{}, nil
	}
	for i := range updates {
		updates[i].Headline = utils.CleanText(updates[i].Headline)
		updates[i].Detail = utils.CleanText(updates[i].Detail)
	}
	return updates, nil
}

// Earnings fetches this week's earnings calendar.
func (s *Service) Earnings(ctx context.Context) ([]models.EarningsEntry, error) {
	var entries []models.EarningsEntry
	if _, err := s.fetchJSON(ctx, OpEarnings, nil, s.model, prompts.Earnings(), &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.EarningsEntry{}
	}
	return entries, nil
}

// Sidebar fetches the watchlist quotes and sector lines.
func (s *Service) Sidebar(ctx context.Context) (*models.SidebarSnapshot, error) {
	var snap models.SidebarSnapshot
	if _, err := s.fetchJSON(ctx, OpSidebar, nil, s.model, prompts.Sidebar(), &snap); err != nil {
		return nil, err
	}
	if snap.Watchlist == nil {
		snap.Watchlist = []models.WatchlistItem{}
	}
	if snap.Sectors == nil {
		snap.Sectors = []models.SectorQuote{}
	}
	return &snap, nil
}
