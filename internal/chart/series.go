package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"replaychart/internal/domain"
)

// Style carries the chart widget's static colors. The renderer owns drawing;
// these values only travel with the data.
type Style struct {
	Up     string `json:"up"`
	Down   string `json:"down"`
	Volume string `json:"volume"`
}

// DefaultStyle matches the candlestick widget's palette.
var DefaultStyle = Style{
	Up:     "#4FFF00",
	Down:   "#FF4976",
	Volume: "#26a69a",
}

// Series is one fully assembled chart payload. It is replaced wholesale on
// every change and never mutated after handoff.
type Series struct {
	Bars    []domain.Bar         `json:"bars"`
	Volume  []domain.VolumePoint `json:"volume"`
	Dropped int                  `json:"dropped"`
}

// Len returns the number of bars.
func (s Series) Len() int { return len(s.Bars) }

// Range returns the bars (and matching volume points) with from <= time <= to.
// A zero bound is open.
func (s Series) Range(from, to int64) Series {
	lo := 0
	if from != 0 {
		lo = sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].Time >= from })
	}
	hi := len(s.Bars)
	if to != 0 {
		hi = sort.Search(len(s.Bars), func(i int) bool { return s.Bars[i].Time > to })
	}
	if lo > hi {
		lo = hi
	}
	return Series{Bars: s.Bars[lo:hi], Volume: s.Volume[lo:hi]}
}

// Assemble normalizes, validates and sorts raws into a display series.
// Bars whose time or numeric fields cannot be parsed are dropped and
// counted in Dropped. Equal times keep their input order.
func Assemble(raws []domain.RawBar, n *Normalizer, style Style) Series {
	bars := make([]domain.Bar, 0, len(raws))
	dropped := 0
	for i := range raws {
		bar, err := toBar(raws[i], n)
		if err != nil {
			dropped++
			continue
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time < bars[j].Time
	})

	return Series{
		Bars:    bars,
		Volume:  VolumeSeries(bars, style),
		Dropped: dropped,
	}
}

// VolumeSeries derives the colored volume histogram for bars.
func VolumeSeries(bars []domain.Bar, style Style) []domain.VolumePoint {
	points := make([]domain.VolumePoint, len(bars))
	for i, b := range bars {
		color := style.Down
		if b.Up() {
			color = style.Up
		}
		points[i] = domain.VolumePoint{Time: b.Time, Value: b.Volume, Color: color}
	}
	return points
}

func toBar(raw domain.RawBar, n *Normalizer) (domain.Bar, error) {
	ts, err := n.Normalize(raw.EventTime())
	if err != nil {
		return domain.Bar{}, err
	}

	var vals [5]float64
	for i, s := range [5]string{raw.Open, raw.High, raw.Low, raw.Close, raw.Volume} {
		v, err := parseNumber(s)
		if err != nil {
			return domain.Bar{}, err
		}
		vals[i] = v
	}

	return domain.Bar{
		Time:   ts,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func parseNumber(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing number %q: %w", s, err)
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("number %q out of range", s)
	}
	return f, nil
}
