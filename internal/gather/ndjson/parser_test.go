package ndjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replaychart/internal/domain"
)

const goodLine = `{"hd":{"ts_event":"2024-11-04T14:31:00.000000000Z","rtype":33,"publisher_id":1,"instrument_id":5602},"open":"5750.250000000","high":"5752.000000000","low":"5749.500000000","close":"5751.750000000","volume":"1289","symbol":"ESZ4"}`

type rejected struct {
	lineNo int
	line   string
}

func parseAll(data string) (bars []domain.RawBar, rejects []rejected, count int) {
	count = ParseLines([]byte(data),
		func(_ int, b domain.RawBar) { bars = append(bars, b) },
		func(n int, line string, _ error) { rejects = append(rejects, rejected{n, line}) },
	)
	return bars, rejects, count
}

func TestParseLinesSkipsBlankLines(t *testing.T) {
	bars, rejects, count := parseAll("\n" + goodLine + "\r\n   \n\t\n" + goodLine + "\n")

	assert.Len(t, bars, 2)
	assert.Empty(t, rejects)
	assert.Equal(t, 2, count)
	assert.Equal(t, "5750.250000000", bars[0].Open)
}

func TestParseLinesMalformedDoesNotAbort(t *testing.T) {
	data := goodLine + "\n" +
		`{"hd":{"ts_event":"x"` + "\n" + // truncated
		`not json at all` + "\n" +
		`[1,2,3]` + "\n" +
		`{"open":"1","symbol":"ESZ4"}` + "\n" + // no header
		`null` + "\n" +
		goodLine

	bars, rejects, count := parseAll(data)

	assert.Len(t, bars, 2)
	require.Len(t, rejects, 5)
	assert.Equal(t, 7, count)
	assert.Equal(t, []int{2, 3, 4, 5, 6}, []int{
		rejects[0].lineNo, rejects[1].lineNo, rejects[2].lineNo, rejects[3].lineNo, rejects[4].lineNo,
	})
	assert.Equal(t, "not json at all", rejects[1].line)
}

func TestParseLineMissingHeader(t *testing.T) {
	_, err := ParseLine([]byte(`{"symbol":"ESZ4"}`))
	assert.ErrorIs(t, err, ErrMissingHeader)

	_, err = ParseLine([]byte(`{"hd":null,"symbol":"ESZ4"}`))
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestParseLineCarriesHeader(t *testing.T) {
	bar, err := ParseLine([]byte(goodLine))
	require.NoError(t, err)
	require.NotNil(t, bar.Hd)
	assert.Equal(t, 33, bar.Hd.RType)
	assert.Equal(t, 1, bar.Hd.PublisherID)
	assert.Equal(t, 5602, bar.Hd.InstrumentID)
	assert.Equal(t, "2024-11-04T14:31:00.000000000Z", bar.EventTime())
}

func TestParseLinesEmptyInput(t *testing.T) {
	bars, rejects, count := parseAll("")
	assert.Empty(t, bars)
	assert.Empty(t, rejects)
	assert.Zero(t, count)
}
