package pipeline

import (
	"net/http"

	"github.com/vitaliisemenov/datomic-client/internal/codec"
	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// Classify turns a transport result into a classified Response, applying in
// order: an anomaly embedded in the body, a transport error, an HTTP error
// status, and finally the body itself. On a successful body that reports a
// database point, the connection watermark advances monotonically.
func Classify(resp *http.Response, err error, state *types.State) *Response {
	if err != nil {
		return anomalyResponse(anomalies.FromTransportError(err))
	}
	defer resp.Body.Close()

	body, decodeAnom := codec.DecodeBody(resp.Header.Get("content-type"), resp.Body)

	// An anomaly in the body wins over everything, including the status.
	if m, ok := body.(map[string]any); ok {
		if a := anomalies.FromMap(m); a != nil {
			return anomalyResponse(a)
		}
	}

	if a := anomalies.FromHTTPStatus(resp.StatusCode, body); a != nil {
		return anomalyResponse(a)
	}

	if decodeAnom != nil {
		return anomalyResponse(decodeAnom)
	}

	r := fromBody(body)
	if state != nil && len(r.Dbs) > 0 && r.Dbs[0].watermark {
		state.Advance(r.Dbs[0].T, r.Dbs[0].NextT)
	}
	return r
}
