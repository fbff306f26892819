// Package ndjson replays newline-delimited JSON OHLCV files into a
// deduplicated bar set.
package ndjson

import "sort"

// DefaultFiles lists the weekly one-minute OHLCV exports the replay reads,
// December 2024 through June 2025.
var DefaultFiles = []string{
	"glbx-mdp3-20241212-20241214.ohlcv-1m.json",
	"glbx-mdp3-20241215-20241221.ohlcv-1m.json",
	"glbx-mdp3-20241222-20241228.ohlcv-1m.json",
	"glbx-mdp3-20241229-20250104.ohlcv-1m.json",
	"glbx-mdp3-20250105-20250111.ohlcv-1m.json",
	"glbx-mdp3-20250112-20250118.ohlcv-1m.json",
	"glbx-mdp3-20250119-20250125.ohlcv-1m.json",
	"glbx-mdp3-20250126-20250201.ohlcv-1m.json",
	"glbx-mdp3-20250202-20250208.ohlcv-1m.json",
	"glbx-mdp3-20250209-20250215.ohlcv-1m.json",
	"glbx-mdp3-20250216-20250222.ohlcv-1m.json",
	"glbx-mdp3-20250223-20250301.ohlcv-1m.json",
	"glbx-mdp3-20250302-20250308.ohlcv-1m.json",
	"glbx-mdp3-20250309-20250315.ohlcv-1m.json",
	"glbx-mdp3-20250316-20250322.ohlcv-1m.json",
	"glbx-mdp3-20250323-20250329.ohlcv-1m.json",
	"glbx-mdp3-20250330-20250405.ohlcv-1m.json",
	"glbx-mdp3-20250406-20250412.ohlcv-1m.json",
	"glbx-mdp3-20250413-20250419.ohlcv-1m.json",
	"glbx-mdp3-20250420-20250426.ohlcv-1m.json",
	"glbx-mdp3-20250427-20250503.ohlcv-1m.json",
	"glbx-mdp3-20250504-20250510.ohlcv-1m.json",
	"glbx-mdp3-20250511-20250517.ohlcv-1m.json",
	"glbx-mdp3-20250518-20250524.ohlcv-1m.json",
	"glbx-mdp3-20250525-20250531.ohlcv-1m.json",
	"glbx-mdp3-20250601-20250607.ohlcv-1m.json",
	"glbx-mdp3-20250608-20250611.ohlcv-1m.json",
}

// SortedFiles returns a lexicographically sorted copy of names. The file
// names embed their date range, so this is also chronological order.
func SortedFiles(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}
