package pipeline

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/datomic-client/internal/codec"
	"github.com/vitaliisemenov/datomic-client/internal/transport"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// implFor builds a connection implementation pointed at a test server.
func implFor(t *testing.T, srv *httptest.Server) *transport.ConnImpl {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return &transport.ConnImpl{
		Scheme:     u.Scheme,
		Host:       u.Hostname(),
		Port:       port,
		DatabaseID: "db-test",
		Timeout:    5 * time.Second,
		Signer:     transport.NewSigner("k", "s", "svc", "r"),
		Client:     srv.Client(),
		State:      types.NewState(),
	}
}

// writeMsgpack responds with a transit+msgpack body.
func writeMsgpack(t *testing.T, w http.ResponseWriter, status int, body map[string]any) {
	t.Helper()
	enc, err := codec.Marshal(body)
	require.NoError(t, err)
	w.Header().Set("content-type", "application/transit+msgpack")
	w.WriteHeader(status)
	_, _ = w.Write(enc.Bytes[:enc.Length])
}

// readPayload decodes a request body sent by the dispatcher.
func readPayload(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	v, anom := codec.DecodeBody("application/transit+msgpack", bytes.NewReader(raw))
	require.Nil(t, anom)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	return m
}
