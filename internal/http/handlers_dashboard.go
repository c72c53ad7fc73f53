package http

import (
	"context"
	"net/http"

	"foodie/internal/achievements"
	"foodie/internal/core"
	"foodie/internal/dashboard"
	"foodie/internal/log"
)

// loadBills reads the restaurant view and normalizes it. Errors have already
// been written to w when ok is false.
func (s *Server) loadBills(ctx context.Context, w http.ResponseWriter) ([]core.Bill, bool) {
	rows, err := s.src.ListRestaurants(ctx)
	if err != nil {
		s.writeSourceError(ctx, w, err, log.OpListRestaurants, msgRestaurantsFailed)
		return nil, false
	}
	bills := s.normalizer.Normalize(rows)
	log.FromContext(ctx).Debug("Bills normalized", log.FieldRows, len(rows), log.FieldBills, len(bills))
	return bills, true
}

func (s *Server) achievementOptions() achievements.Options {
	return achievements.Options{HomeCity: s.homeCity}
}

// handleInsights serves the spending page cards.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	bills, ok := s.loadBills(r.Context(), w)
	if !ok {
		return
	}
	cards := dashboard.Insights(bills, s.now().In(s.location), s.homeCity)
	NewJSONResponse().CacheControl().Body(map[string]any{"cards": cards}).Write(w)
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	bills, ok := s.loadBills(r.Context(), w)
	if !ok {
		return
	}
	badges := achievements.Evaluate(bills, s.achievementOptions())
	NewJSONResponse().CacheControl().Body(map[string]any{
		"badges":   badges,
		"unlocked": achievements.Unlocked(badges),
		"total":    len(badges),
	}).Write(w)
}

// handleOverview serves the landing page header and map.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	bills, ok := s.loadBills(r.Context(), w)
	if !ok {
		return
	}
	NewJSONResponse().CacheControl().Body(dashboard.NewOverview(bills, s.achievementOptions())).Write(w)
}

// handleActivities serves one page of the restaurant list. The map shows
// every activity regardless of search and paging.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	state := ParseListState(r.URL.Query())
	bills, ok := s.loadBills(r.Context(), w)
	if !ok {
		return
	}
	acts := dashboard.Activities(bills)
	NewJSONResponse().CacheControl().Body(map[string]any{
		"page":    dashboard.Apply(acts, state),
		"markers": dashboard.Markers(acts),
	}).Write(w)
}
