package barset

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replaychart/internal/chart"
	"replaychart/internal/domain"
	"replaychart/internal/gather"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBook(t *testing.T) *Book {
	t.Helper()
	norm, err := chart.NewNormalizer(domain.DisplayTimezone)
	require.NoError(t, err)
	return NewBook(norm, chart.DefaultStyle, testLogger())
}

func TestBookChangedReplacesSeries(t *testing.T) {
	book := newTestBook(t)
	book.Started("run-1", []string{"a.json", "b.json"})

	book.Changed([]domain.RawBar{
		rawBar("2024-11-04T14:32:00Z", "ESZ4", "101", "100"),
		rawBar("2024-11-04T14:31:00Z", "ESZ4", "100", "101"),
	})

	snap := book.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	require.Len(t, snap.Series.Bars, 2)
	assert.Less(t, snap.Series.Bars[0].Time, snap.Series.Bars[1].Time)

	book.Changed([]domain.RawBar{
		rawBar("2024-11-04T14:31:00Z", "ESZ4", "100", "101"),
	})
	snap = book.Snapshot()
	assert.Equal(t, int64(2), snap.Version)
	assert.Len(t, snap.Series.Bars, 1)

	st := book.Status()
	assert.Equal(t, "run-1", st.RunID)
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, 1, st.Records)
	assert.Equal(t, 1, st.Bars)
	assert.Equal(t, "ESZ4", st.Symbol)
}

func TestBookStatusCounters(t *testing.T) {
	book := newTestBook(t)
	book.Started("run-2", []string{"a", "b", "c"})
	book.FileSkipped("a", errors.New("404"))
	book.LineMalformed("b", 3, "{", errors.New("bad json"))
	book.LineMalformed("b", 4, "}", errors.New("bad json"))
	book.FileLoaded("b", gather.FileStats{})
	book.Finished(gather.Summary{RunID: "run-2"})

	st := book.Status()
	assert.Equal(t, 1, st.Skipped)
	assert.Equal(t, 2, st.Malformed)
	assert.Equal(t, 1, st.Loaded)
	assert.True(t, st.Done)
	assert.False(t, st.FinishedAt.IsZero())
}

func TestBookSubscribe(t *testing.T) {
	book := newTestBook(t)
	id, ch := book.Subscribe(4)
	assert.Equal(t, 1, book.Subscribers())

	book.Changed([]domain.RawBar{rawBar("2024-11-04T14:31:00Z", "ESZ4", "100", "101")})
	book.Finished(gather.Summary{})

	upd := <-ch
	assert.Equal(t, int64(1), upd.Version)
	assert.False(t, upd.Done)
	assert.Len(t, upd.Series.Bars, 1)

	upd = <-ch
	assert.True(t, upd.Done)
	assert.Equal(t, int64(1), upd.Version)

	book.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok, "channel closed after Unsubscribe")
	assert.Zero(t, book.Subscribers())

	// Unsubscribing twice is harmless.
	book.Unsubscribe(id)
}

func TestBookSlowSubscriberKeepsLatest(t *testing.T) {
	book := newTestBook(t)
	_, ch := book.Subscribe(1)

	for i := 0; i < 3; i++ {
		book.Changed([]domain.RawBar{rawBar("2024-11-04T14:31:00Z", "ESZ4", "100", "101")})
	}

	upd := <-ch
	assert.Equal(t, int64(3), upd.Version)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected buffered update %d", extra.Version)
	default:
	}
	assert.Equal(t, int64(3), book.Snapshot().Version)
}

func TestBookDoneSurvivesFullBuffer(t *testing.T) {
	book := newTestBook(t)
	_, ch := book.Subscribe(16)

	book.Started("run-1", make([]string, 27))
	for i := 0; i < 27; i++ {
		book.Changed([]domain.RawBar{rawBar("2024-11-04T14:31:00Z", "ESZ4", "100", "101")})
	}
	book.Finished(gather.Summary{RunID: "run-1", Files: 27})

	var last Update
	n := 0
	for drained := false; !drained; {
		select {
		case upd := <-ch:
			last = upd
			n++
		default:
			drained = true
		}
	}
	assert.Equal(t, 16, n)
	assert.True(t, last.Done, "final update must carry done")
	assert.Equal(t, int64(27), last.Version)
}

func TestBookRange(t *testing.T) {
	book := newTestBook(t)
	book.Changed([]domain.RawBar{
		rawBar("2024-11-04T14:31:00Z", "ESZ4", "1", "1"),
		rawBar("2024-11-04T14:32:00Z", "ESZ4", "2", "2"),
	})
	first := book.Snapshot().Series.Bars[0].Time

	r := book.Range(first, first)
	require.Len(t, r.Bars, 1)
	assert.Equal(t, first, r.Bars[0].Time)
	assert.Equal(t, "America/Chicago", book.Timezone())
}
