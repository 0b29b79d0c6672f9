package pipeline

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/datomic-client/internal/codec"
	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

func msgpackResponse(t *testing.T, status int, body map[string]any) *http.Response {
	t.Helper()
	enc, err := codec.Marshal(body)
	require.NoError(t, err)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/transit+msgpack"}},
		Body:       io.NopCloser(strings.NewReader(string(enc.Bytes[:enc.Length]))),
	}
}

func TestClassify_BodyAnomalyWinsOverStatus(t *testing.T) {
	resp := msgpackResponse(t, 503, map[string]any{
		anomalies.CategoryKey: "busy",
		anomalies.MessageKey:  "too much going on",
	})

	got := Classify(resp, nil, nil)
	require.NotNil(t, got.Anomaly)
	assert.Equal(t, anomalies.Busy, got.Anomaly.Category)
	assert.Equal(t, "too much going on", got.Anomaly.Message)
	// The body anomaly, not the 503 mapping: no http-error attachment.
	assert.Nil(t, got.Anomaly.HTTPError)
}

func TestClassify_TransportError(t *testing.T) {
	got := Classify(nil, errors.New("dial tcp: connect: connection refused"), nil)
	require.NotNil(t, got.Anomaly)
	assert.Equal(t, anomalies.Unavailable, got.Anomaly.Category)
}

func TestClassify_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   anomalies.Category
	}{
		{403, anomalies.Forbidden},
		{503, anomalies.Busy},
		{504, anomalies.Unavailable},
		{404, anomalies.Incorrect},
		{500, anomalies.Fault},
	}
	for _, tt := range tests {
		resp := msgpackResponse(t, tt.status, map[string]any{"details": "nope"})
		got := Classify(resp, nil, nil)
		require.NotNil(t, got.Anomaly, "status %d", tt.status)
		assert.Equal(t, tt.want, got.Anomaly.Category, "status %d", tt.status)
		assert.NotNil(t, got.Anomaly.HTTPError, "status %d attaches the body", tt.status)
	}
}

func TestClassify_SuccessAdvancesWatermark(t *testing.T) {
	state := types.NewState()
	resp := msgpackResponse(t, 200, map[string]any{
		"dbs":    []any{map[string]any{"database-id": "db-test", "t": int64(7), "next-t": int64(8)}},
		"result": "fine",
	})

	got := Classify(resp, nil, state)
	require.Nil(t, got.Anomaly)
	assert.Equal(t, "fine", got.Result)

	tVal, nextT := state.Load()
	assert.Equal(t, int64(7), tVal)
	assert.Equal(t, int64(8), nextT)
}

func TestClassify_WatermarkNeedsBothFields(t *testing.T) {
	state := types.NewState()
	state.Advance(3, 4)

	resp := msgpackResponse(t, 200, map[string]any{
		"dbs": []any{map[string]any{"database-id": "db-test", "t": int64(9)}},
	})
	Classify(resp, nil, state)

	tVal, nextT := state.Load()
	assert.Equal(t, int64(3), tVal)
	assert.Equal(t, int64(4), nextT)
}

func TestClassify_WatermarkIsMonotonic(t *testing.T) {
	state := types.NewState()
	state.Advance(100, 101)

	resp := msgpackResponse(t, 200, map[string]any{
		"dbs": []any{map[string]any{"t": int64(7), "next-t": int64(8)}},
	})
	Classify(resp, nil, state)

	tVal, _ := state.Load()
	assert.Equal(t, int64(100), tVal)
}

func TestClassify_UnknownContentTypeIsFault(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"application/x-something"}},
		Body:       io.NopCloser(strings.NewReader("x")),
	}
	got := Classify(resp, nil, nil)
	require.NotNil(t, got.Anomaly)
	assert.Equal(t, anomalies.Fault, got.Anomaly.Category)
	assert.Contains(t, got.Anomaly.Message, "Cannot unmarshal content-type")
}

func TestClassify_TextBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader("pong")),
	}
	got := Classify(resp, nil, nil)
	require.Nil(t, got.Anomaly)
	assert.Equal(t, "pong", got.Result)
}

func TestFromBody_ExtraFieldsPassThrough(t *testing.T) {
	r := fromBody(map[string]any{
		"result":       "ok",
		"server-epoch": int64(12),
	})
	assert.Equal(t, "ok", r.Result)
	assert.Equal(t, int64(12), r.Extra["server-epoch"])
}
