// Package pipeline implements the request/response pipeline: marshalling,
// submission with retry, anomaly classification, and chunked streaming.
package pipeline

import (
	"time"

	"github.com/vitaliisemenov/datomic-client/internal/codec"
	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
)

// Logical operation names. Catalog ops carry their namespace; protocol ops
// are bare and qualified at the transport boundary.
const (
	OpStatus     = "status"
	OpDatoms     = "datoms"
	OpIndexRange = "index-range"
	OpPull       = "pull"
	OpQ          = "q"
	OpTxRange    = "tx-range"
	OpTransact   = "transact"
	OpWithDb     = "with-db"
	OpWith       = "with"
	OpDbStats    = "db-stats"
	OpNext       = "next"

	OpResolveDb = "datomic.catalog/resolve-db"
	OpCreateDb  = "datomic.catalog/create-db"
	OpDeleteDb  = "datomic.catalog/delete-db"
	OpListDbs   = "datomic.catalog/list-dbs"
)

// Request is a logical request. Op, Timeout, and NextToken travel out of
// band; only Payload is marshalled into the body.
type Request struct {
	Op        string
	Timeout   time.Duration
	NextToken string
	Payload   map[string]any
}

// DbInfo is a database point reported by the server.
type DbInfo struct {
	DatabaseID string
	T          int64
	NextT      int64
	NextToken  string

	// watermark reports whether both t and next-t were present.
	watermark bool
}

// Response is a classified response: either Anomaly is set, or the decoded
// body fields are.
type Response struct {
	Anomaly *anomalies.Anomaly

	Dbs        []DbInfo
	NextToken  string
	NextOffset *int64
	Data       []any
	Result     any
	DatabaseID string
	DbBefore   *DbInfo
	DbAfter    *DbInfo
	TxData     []any
	Tempids    map[string]int64

	// Extra passes through response fields this client does not recognize.
	Extra map[string]any
}

var knownResponseKeys = map[string]struct{}{
	"dbs": {}, "next-token": {}, "next-offset": {}, "data": {}, "result": {},
	"database-id": {}, "db-before": {}, "db-after": {}, "tx-data": {}, "tempids": {},
}

// fromBody lifts a decoded body into a Response. Non-map bodies (a raw
// text/plain string, for example) land in Result.
func fromBody(body any) *Response {
	m, ok := body.(map[string]any)
	if !ok {
		return &Response{Result: body}
	}
	r := &Response{}
	if dbs, ok := m["dbs"].([]any); ok {
		for _, d := range dbs {
			if dm, ok := d.(map[string]any); ok {
				r.Dbs = append(r.Dbs, dbInfoFromMap(dm))
			}
		}
	}
	if s, ok := m["next-token"].(string); ok {
		r.NextToken = s
	}
	if off, ok := codec.AsInt64(m["next-offset"]); ok {
		r.NextOffset = &off
	}
	if data, ok := m["data"].([]any); ok {
		r.Data = data
	}
	if res, ok := m["result"]; ok {
		r.Result = res
	}
	if id, ok := m["database-id"].(string); ok {
		r.DatabaseID = id
	}
	if dm, ok := m["db-before"].(map[string]any); ok {
		info := dbInfoFromMap(dm)
		r.DbBefore = &info
	}
	if dm, ok := m["db-after"].(map[string]any); ok {
		info := dbInfoFromMap(dm)
		r.DbAfter = &info
	}
	if td, ok := m["tx-data"].([]any); ok {
		r.TxData = td
	}
	if tm, ok := m["tempids"].(map[string]any); ok {
		r.Tempids = make(map[string]int64, len(tm))
		for k, v := range tm {
			if id, ok := codec.AsInt64(v); ok {
				r.Tempids[k] = id
			}
		}
	}
	for k, v := range m {
		if _, known := knownResponseKeys[k]; !known {
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[k] = v
		}
	}
	return r
}

func dbInfoFromMap(m map[string]any) DbInfo {
	info := DbInfo{}
	if id, ok := m["database-id"].(string); ok {
		info.DatabaseID = id
	}
	t, tok := codec.AsInt64(m["t"])
	nextT, nok := codec.AsInt64(m["next-t"])
	if tok {
		info.T = t
	}
	if nok {
		info.NextT = nextT
	}
	info.watermark = tok && nok
	if s, ok := m["next-token"].(string); ok {
		info.NextToken = s
	}
	return info
}

func anomalyResponse(a *anomalies.Anomaly) *Response {
	return &Response{Anomaly: a}
}
