package main

import (
	"context"
	"sort"
	"time"

	"github.com/matst80/sshtarpit/internal/obs"
	"github.com/matst80/sshtarpit/internal/tarpit"
)

// maxListedConns bounds the connection list in Stats; counts stay exact.
const maxListedConns = 50

// Stats represents current tarpit stats for dashboards & API.
type Stats struct {
	Active        int         `json:"active"`
	Total         int64       `json:"total"`
	WastedSeconds float64     `json:"wasted_seconds"` // closed peers plus the time active peers have been held so far
	Longest       *ConnView   `json:"longest,omitempty"`
	Conns         []ConnView  `json:"conns"`
	Fleet         *FleetStats `json:"fleet,omitempty"`
	Now           string      `json:"now"`
}

// ConnView is one active peer as shown on the dashboard.
type ConnView struct {
	tarpit.ConnInfo
	HeldSeconds float64 `json:"held_seconds"`
}

// FleetStats sums every live instance sharing the same Redis.
type FleetStats struct {
	Instances     int     `json:"instances"`
	Active        int64   `json:"active"`
	Total         int64   `json:"total"`
	WastedSeconds float64 `json:"wasted_seconds"`
}

func buildStats(conns map[string]tarpit.ConnInfo, total int64, wasted time.Duration, now time.Time) Stats {
	st := Stats{Active: len(conns), Total: total, Now: now.UTC().Format(time.RFC3339)}
	views := make([]ConnView, 0, len(conns))
	for _, c := range conns {
		held := now.Sub(c.Since)
		wasted += held
		views = append(views, ConnView{ConnInfo: c, HeldSeconds: held.Seconds()})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Since.Before(views[j].Since) })
	if len(views) > 0 {
		longest := views[0]
		st.Longest = &longest
	}
	if len(views) > maxListedConns {
		views = views[:maxListedConns]
	}
	st.Conns = views
	st.WastedSeconds = wasted.Seconds()
	return st
}

func collectStats(ctx context.Context, s StateStore) Stats {
	st, err := s.stats(ctx)
	if err != nil {
		obs.Error("state.stats", obs.Fields{"err": err.Error()})
	}
	return st
}

// ToTemplateMap returns a map suited for html/template rendering with expected capitalized keys.
func (s Stats) ToTemplateMap() map[string]any {
	m := map[string]any{
		"Active": s.Active,
		"Total":  s.Total,
		"Wasted": (time.Duration(s.WastedSeconds) * time.Second).String(),
		"Conns":  s.Conns,
	}
	if s.Longest != nil {
		m["Longest"] = s.Longest
	}
	if s.Fleet != nil {
		m["Fleet"] = s.Fleet
	}
	return m
}
