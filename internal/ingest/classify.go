package ingest

import (
	"encoding/json"
	"strings"

	"github.com/tinytelemetry/flatstat/internal/model"
)

// classify converts one accumulated leaf into a typed metric record:
// whole numbers become integers (bools as 0/1), fractional or exponent
// numbers become floats, and everything else falls back to its textual
// representation as a string. It never fails.
//
// int64 is the widest natively represented integer; whole numbers beyond
// that keep their textual json.Number form under the integer kind so no
// precision is lost.
func classify(name string, value any) model.MetricRecord {
	switch v := value.(type) {
	case json.Number:
		if isWholeNumber(v) {
			if i, err := v.Int64(); err == nil {
				return model.MetricRecord{Name: name, Value: i, Kind: model.KindInteger}
			}
			return model.MetricRecord{Name: name, Value: v, Kind: model.KindInteger}
		}
		if f, err := v.Float64(); err == nil {
			return model.MetricRecord{Name: name, Value: f, Kind: model.KindFloat}
		}
		return model.MetricRecord{Name: name, Value: v.String(), Kind: model.KindString}
	case bool:
		n := int64(0)
		if v {
			n = 1
		}
		return model.MetricRecord{Name: name, Value: n, Kind: model.KindInteger}
	case int:
		return model.MetricRecord{Name: name, Value: int64(v), Kind: model.KindInteger}
	case int64:
		return model.MetricRecord{Name: name, Value: v, Kind: model.KindInteger}
	case float64:
		return model.MetricRecord{Name: name, Value: v, Kind: model.KindFloat}
	case string:
		return model.MetricRecord{Name: name, Value: v, Kind: model.KindString}
	default:
		return model.MetricRecord{Name: name, Value: stringifyLeaf(v), Kind: model.KindString}
	}
}

func isWholeNumber(n json.Number) bool {
	return !strings.ContainsAny(n.String(), ".eE")
}

// stringifyLeaf renders a leaf that has no numeric interpretation, such as
// null. JSON text form keeps the output reversible.
func stringifyLeaf(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return string(b)
}
