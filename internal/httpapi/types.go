// Package httpapi serves the replayed chart over HTTP: JSON snapshots,
// Server-Sent Events for progressive updates, and the raw data files.
package httpapi

import (
	"replaychart/internal/barset"
	"replaychart/internal/chart"
	"replaychart/internal/domain"
)

// ChartJSON is the full payload a chart needs to render.
type ChartJSON struct {
	Symbol   string               `json:"symbol"`
	Timezone string               `json:"timezone"`
	Version  int64                `json:"version"`
	Done     bool                 `json:"done"`
	Bars     []domain.Bar         `json:"bars"`
	Volume   []domain.VolumePoint `json:"volume"`
	Style    chart.Style          `json:"style"`
}

// BarsJSON is the response of /api/bars.
type BarsJSON struct {
	Version int64        `json:"version"`
	Count   int          `json:"count"`
	Bars    []domain.Bar `json:"bars"`
}

// VolumeJSON is the response of /api/volume.
type VolumeJSON struct {
	Version int64                `json:"version"`
	Count   int                  `json:"count"`
	Volume  []domain.VolumePoint `json:"volume"`
}

// StatusJSON is the response of /api/status.
type StatusJSON struct {
	barset.Status
	Timezone    string `json:"timezone"`
	Subscribers int    `json:"subscribers"`
}

// DoneJSON is the payload of the SSE "done" event.
type DoneJSON struct {
	Version int64 `json:"version"`
	Bars    int   `json:"bars"`
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
