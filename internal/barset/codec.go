package barset

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"replaychart/internal/domain"
)

// encodeUpdate converts an update into its wire message.
func encodeUpdate(u Update) (*structpb.Struct, error) {
	bars := make([]any, len(u.Series.Bars))
	for i, b := range u.Series.Bars {
		bars[i] = map[string]any{
			"time":   b.Time,
			"open":   b.Open,
			"high":   b.High,
			"low":    b.Low,
			"close":  b.Close,
			"volume": b.Volume,
		}
	}
	volume := make([]any, len(u.Series.Volume))
	for i, v := range u.Series.Volume {
		volume[i] = map[string]any{
			"time":  v.Time,
			"value": v.Value,
			"color": v.Color,
		}
	}
	return structpb.NewStruct(map[string]any{
		"version": u.Version,
		"done":    u.Done,
		"dropped": u.Series.Dropped,
		"bars":    bars,
		"volume":  volume,
	})
}

// decodeUpdate is the inverse of encodeUpdate.
func decodeUpdate(msg *structpb.Struct) (Update, error) {
	f := msg.GetFields()
	upd := Update{
		Version: int64(f["version"].GetNumberValue()),
		Done:    f["done"].GetBoolValue(),
	}
	upd.Series.Dropped = int(f["dropped"].GetNumberValue())

	for i, v := range f["bars"].GetListValue().GetValues() {
		m := v.GetStructValue().GetFields()
		if m == nil {
			return Update{}, fmt.Errorf("bar %d: not an object", i)
		}
		upd.Series.Bars = append(upd.Series.Bars, domain.Bar{
			Time:   int64(m["time"].GetNumberValue()),
			Open:   m["open"].GetNumberValue(),
			High:   m["high"].GetNumberValue(),
			Low:    m["low"].GetNumberValue(),
			Close:  m["close"].GetNumberValue(),
			Volume: m["volume"].GetNumberValue(),
		})
	}
	for i, v := range f["volume"].GetListValue().GetValues() {
		m := v.GetStructValue().GetFields()
		if m == nil {
			return Update{}, fmt.Errorf("volume point %d: not an object", i)
		}
		upd.Series.Volume = append(upd.Series.Volume, domain.VolumePoint{
			Time:  int64(m["time"].GetNumberValue()),
			Value: m["value"].GetNumberValue(),
			Color: m["color"].GetStringValue(),
		})
	}
	if len(upd.Series.Volume) != len(upd.Series.Bars) {
		return Update{}, fmt.Errorf("bars/volume length mismatch: %d != %d", len(upd.Series.Bars), len(upd.Series.Volume))
	}
	return upd, nil
}

// watchRequest holds the Watch call options.
type watchRequest struct {
	UntilDone bool
}

func encodeWatchRequest(r watchRequest) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"until_done": r.UntilDone})
}

func decodeWatchRequest(msg *structpb.Struct) watchRequest {
	return watchRequest{UntilDone: msg.GetFields()["until_done"].GetBoolValue()}
}
