package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/vitaliisemenov/datomic-client/internal/codec"
	"github.com/vitaliisemenov/datomic-client/internal/transport"
	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
	"github.com/vitaliisemenov/datomic-client/pkg/logger"
	"github.com/vitaliisemenov/datomic-client/pkg/metrics"
)

// QueueRequest marshals req, submits it with busy retry, and delivers the
// classified result on a single-shot channel.
func QueueRequest(ctx context.Context, impl *transport.ConnImpl, req Request) <-chan *Response {
	out := make(chan *Response, 1)
	go func() {
		defer close(out)
		out <- run(ctx, impl, req)
	}()
	return out
}

func run(ctx context.Context, impl *transport.ConnImpl, req Request) *Response {
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
	enc, err := codec.Marshal(req.Payload)
	if err != nil {
		return anomalyResponse(anomalies.FromError(err))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = impl.Timeout
	}

	log := impl.Logger
	if log == nil {
		log = slog.Default()
	}
	// Retries of the same logical request share one correlation id.
	log = log.With("request_id", logger.GenerateRequestID())
	m := metrics.NewPipelineMetrics()
	op := transport.QualifyOp(req.Op)

	attempt := func() *Response {
		start := time.Now()
		httpReq, err := impl.BuildRequest(ctx, req.Op, enc.Bytes, enc.Length, req.NextToken)
		if err != nil {
			return anomalyResponse(anomalies.FromError(err))
		}
		httpResp, err := impl.Submit(ctx, httpReq, enc.Bytes[:enc.Length], timeout)
		resp := Classify(httpResp, err, impl.State)
		m.RecordRequest(op, outcome(resp), time.Since(start).Seconds())
		return resp
	}

	backoff := BusyBackoff(RetryStart, RetryMax, RetryFactor)
	resp := WithRetry(ctx, attempt, func(r *Response) (time.Duration, bool) {
		delay, retry := backoff(r)
		if retry {
			m.RecordRetry(op, delay.Seconds())
			log.Debug("server busy, backing off", "op", op, "delay", delay)
		}
		return delay, retry
	})

	if resp != nil && resp.Anomaly != nil {
		log.Warn("request failed", "op", op, "category", resp.Anomaly.Category, "message", resp.Anomaly.Message)
	}
	return resp
}

func outcome(resp *Response) string {
	if resp == nil || resp.Anomaly == nil {
		return "ok"
	}
	return string(resp.Anomaly.Category)
}
