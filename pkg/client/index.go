package client

import (
	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// Index names.
const (
	IndexEAVT types.Keyword = "eavt"
	IndexAEVT types.Keyword = "aevt"
	IndexAVET types.Keyword = "avet"
	IndexVAET types.Keyword = "vaet"
)

// indexOrders maps an index to the position order its components bind to.
// The trailing t slot is implicit in the database snapshot, so callers may
// bind at most the first three positions.
var indexOrders = map[types.Keyword][]string{
	IndexEAVT: {"e", "a", "v", "t"},
	IndexAEVT: {"a", "e", "v", "t"},
	IndexAVET: {"a", "v", "e", "t"},
	IndexVAET: {"v", "a", "e", "t"},
}

// bindComponents places component i under the key at position i of the
// index's ordering. Absent positions are omitted.
func bindComponents(index types.Keyword, components []any, payload map[string]any) *anomalies.Anomaly {
	order, ok := indexOrders[index]
	if !ok {
		return anomalies.Newf(anomalies.Incorrect, "unknown index %s", index)
	}
	if len(components) > 3 {
		return anomalies.Newf(anomalies.Incorrect,
			"too many components: %d bound, at most 3 allowed", len(components))
	}
	for i, c := range components {
		payload[order[i]] = c
	}
	return nil
}
