// Package transport turns logical operations into signed HTTP requests and
// submits them over a shared, trust-configured HTTP client.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// Wire envelope headers.
const (
	HeaderOp     = "x-nano-op"
	HeaderTarget = "x-nano-target"
	HeaderNext   = "x-nano-next"
)

const (
	catalogNamespace  = "datomic.catalog"
	protocolNamespace = "datomic.client.protocol"

	contentTypeMsgpack = "application/transit+msgpack"
)

// ConnImpl is the connection implementation shared by every call on a
// logical connection: the parsed endpoint, the signer, the HTTP client, the
// watermark state, and the resolved database id.
type ConnImpl struct {
	Scheme     string
	Host       string
	Port       int
	DatabaseID string

	// Timeout is the default per-request deadline.
	Timeout time.Duration

	Signer Signer
	Client *http.Client
	State  *types.State
	Logger *slog.Logger
}

// Address returns host:port.
func (ci *ConnImpl) Address() string {
	return fmt.Sprintf("%s:%d", ci.Host, ci.Port)
}

// QualifyOp returns the string placed in the x-nano-op header. Ops in the
// datomic.catalog namespace pass through as-is; everything else is qualified
// into the client protocol namespace by name.
func QualifyOp(op string) string {
	if ns, _, ok := strings.Cut(op, "/"); ok && ns == catalogNamespace {
		return op
	}
	if _, name, ok := strings.Cut(op, "/"); ok {
		return protocolNamespace + "/" + name
	}
	return protocolNamespace + "/" + op
}

// IsCatalogOp reports whether op belongs to the administrative catalog
// namespace. Catalog ops carry no target header.
func IsCatalogOp(op string) bool {
	ns, _, ok := strings.Cut(op, "/")
	return ok && ns == catalogNamespace
}

// BuildRequest assembles the HTTP POST for a logical request: exactly length
// bytes of marshalled body, the envelope headers, and the continuation token
// when one is supplied. The request is not yet signed.
func (ci *ConnImpl) BuildRequest(ctx context.Context, op string, body []byte, length int, nextToken string) (*http.Request, error) {
	url := fmt.Sprintf("%s://%s/", ci.Scheme, ci.Address())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body[:length]))
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(length)
	req.Header.Set("content-type", contentTypeMsgpack)
	req.Header.Set("accept", contentTypeMsgpack)
	req.Header.Set(HeaderOp, QualifyOp(op))
	if !IsCatalogOp(op) && ci.DatabaseID != "" {
		req.Header.Set(HeaderTarget, ci.DatabaseID)
	}
	if nextToken != "" {
		req.Header.Set(HeaderNext, nextToken)
	}
	return req, nil
}

// Submit signs the request and executes it under the given deadline. The
// caller owns the response body.
func (ci *ConnImpl) Submit(ctx context.Context, req *http.Request, body []byte, timeout time.Duration) (*http.Response, error) {
	if timeout <= 0 {
		timeout = ci.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	req = req.WithContext(ctx)

	if err := ci.Signer.Sign(ctx, req, body); err != nil {
		cancel()
		return nil, err
	}

	resp, err := ci.Client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	// Release the deadline when the body is consumed.
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
