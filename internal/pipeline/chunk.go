package pipeline

import (
	"context"
	"time"

	"github.com/vitaliisemenov/datomic-client/internal/transport"
	"github.com/vitaliisemenov/datomic-client/pkg/metrics"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// Per-request paging defaults and bounds.
const (
	DefaultOffset  = 0
	DefaultLimit   = 1000
	UnboundedLimit = -1
	DefaultChunk   = 1000
	MaxChunk       = 10_000
)

// DefaultQTimeout is the q-specific request timeout, applied independently
// of the connection's configured timeout.
const DefaultQTimeout = 60_000 * time.Millisecond

// ExtractField names the response field a chunked op yields.
const (
	ExtractData   = "data"
	ExtractResult = "result"
)

// Stream issues req and keeps issuing next requests while the server
// reports more data, yielding one Chunk per response on an unbuffered
// channel so the consumer exerts backpressure on fetching. An anomaly at
// any step is pushed onto the channel and ends the stream. The channel is
// closed when the last chunk (one with no next-offset) has been delivered.
func Stream(ctx context.Context, impl *transport.ConnImpl, req Request, field string) <-chan types.Chunk {
	out := make(chan types.Chunk)
	chunkSize := chunkOf(req)
	m := metrics.NewPipelineMetrics()

	go func() {
		defer close(out)
		resp := <-QueueRequest(ctx, impl, req)
		for {
			if resp == nil {
				return
			}
			if resp.Anomaly != nil {
				select {
				case out <- types.Chunk{Anomaly: resp.Anomaly}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case out <- types.Chunk{Data: extract(resp, field)}:
				m.RecordChunk(req.Op)
			case <-ctx.Done():
				return
			}

			if resp.NextOffset == nil {
				return
			}
			next := Request{
				Op:        OpNext,
				Timeout:   req.Timeout,
				NextToken: resp.NextToken,
				Payload: map[string]any{
					"next-offset": *resp.NextOffset,
					"chunk":       chunkSize,
				},
			}
			resp = <-QueueRequest(ctx, impl, next)
		}
	}()
	return out
}

func extract(resp *Response, field string) []any {
	if field == ExtractResult {
		if s, ok := resp.Result.([]any); ok {
			return s
		}
		if resp.Result == nil {
			return nil
		}
		return []any{resp.Result}
	}
	return resp.Data
}

func chunkOf(req Request) int64 {
	if c, ok := req.Payload["chunk"].(int64); ok {
		return c
	}
	if c, ok := req.Payload["chunk"].(int); ok {
		return int64(c)
	}
	return DefaultChunk
}

// ClampChunk applies the chunk-size default and upper bound.
func ClampChunk(chunk int) int {
	if chunk <= 0 {
		return DefaultChunk
	}
	if chunk > MaxChunk {
		return MaxChunk
	}
	return chunk
}

// OrDefaultLimit applies the limit default; the -1 sentinel passes through
// unbounded.
func OrDefaultLimit(limit int) int {
	if limit == 0 {
		return DefaultLimit
	}
	return limit
}
