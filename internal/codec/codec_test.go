package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	in := map[string]any{
		"db-name": "movies",
		"limit":   int64(1000),
		"index":   types.Keyword("eavt"),
		"data": []any{
			types.Datom{E: int64(17), A: types.Keyword("person/name"), V: "Fred", T: 1000, Added: true},
			types.Datom{E: int64(18), A: types.Keyword("person/age"), V: int64(41), T: 1001, Added: false},
		},
	}

	enc, err := Marshal(in)
	require.NoError(t, err)
	require.Equal(t, len(enc.Bytes), enc.Length)

	out, err := Unmarshal(bytes.NewReader(enc.Bytes[:enc.Length]), FormatMsgpack)
	require.NoError(t, err)

	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "movies", m["db-name"])
	assert.Equal(t, int64(1000), m["limit"])
	assert.Equal(t, types.Keyword("eavt"), m["index"])

	data, ok := m["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 2)

	d0, ok := data[0].(types.Datom)
	require.True(t, ok, "datom tag must reconstruct a fact tuple, got %T", data[0])
	assert.True(t, d0.Equal(types.Datom{E: int64(17), A: types.Keyword("person/name"), V: "Fred", T: 1000, Added: true}))

	d1 := data[1].(types.Datom)
	assert.Equal(t, false, d1.Added)
	assert.Equal(t, types.Keyword("person/age"), d1.A)
}

func TestUnmarshal_JSONTaggedDatom(t *testing.T) {
	body := `{"data": [{"~#datom": [17, "~:person/name", "Fred", 1000, true]}], "next-token": "tok"}`

	out, err := Unmarshal(strings.NewReader(body), FormatJSON)
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.Equal(t, "tok", m["next-token"])
	data := m["data"].([]any)
	require.Len(t, data, 1)

	d, ok := data[0].(types.Datom)
	require.True(t, ok)
	assert.Equal(t, types.Keyword("person/name"), d.A)
	assert.Equal(t, int64(1000), d.T)
	assert.True(t, d.Added)
}

func TestUnmarshal_EDN(t *testing.T) {
	body := `{:result "ok" :count 3}`

	out, err := Unmarshal(strings.NewReader(body), FormatEDN)
	require.NoError(t, err)

	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", m["result"])
	count, ok := m["count"]
	require.True(t, ok)
	n, ok := AsInt64(count)
	require.True(t, ok)
	assert.Equal(t, int64(3), n)
}

func TestDecodeBody_Dispatch(t *testing.T) {
	t.Run("msgpack", func(t *testing.T) {
		enc, err := Marshal(map[string]any{"result": "ok"})
		require.NoError(t, err)
		v, anom := DecodeBody("application/transit+msgpack", bytes.NewReader(enc.Bytes))
		require.Nil(t, anom)
		assert.Equal(t, map[string]any{"result": "ok"}, v)
	})

	t.Run("json with parameters", func(t *testing.T) {
		v, anom := DecodeBody("application/transit+json; charset=utf-8", strings.NewReader(`{"result": "ok"}`))
		require.Nil(t, anom)
		assert.Equal(t, map[string]any{"result": "ok"}, v)
	})

	t.Run("text", func(t *testing.T) {
		v, anom := DecodeBody("text/plain", strings.NewReader("hello"))
		require.Nil(t, anom)
		assert.Equal(t, "hello", v)
	})

	t.Run("unknown content type is a fault", func(t *testing.T) {
		_, anom := DecodeBody("application/octet-stream", strings.NewReader("x"))
		require.NotNil(t, anom)
		assert.Equal(t, anomalies.Fault, anom.Category)
		assert.Contains(t, anom.Message, "Cannot unmarshal content-type application/octet-stream")
	})

	t.Run("decode failure is a fault", func(t *testing.T) {
		_, anom := DecodeBody("application/transit+json", strings.NewReader("{not json"))
		require.NotNil(t, anom)
		assert.Equal(t, anomalies.Fault, anom.Category)
	})
}

func TestAsInt64(t *testing.T) {
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{int64(5), 5, true},
		{uint64(5), 5, true},
		{float64(5), 5, true},
		{float64(5.5), 0, false},
		{"5", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := AsInt64(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if ok {
			assert.Equal(t, tt.want, got)
		}
	}
}
