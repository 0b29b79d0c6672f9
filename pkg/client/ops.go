package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vitaliisemenov/datomic-client/internal/codec"
	"github.com/vitaliisemenov/datomic-client/internal/pipeline"
	"github.com/vitaliisemenov/datomic-client/internal/transport"
	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// DatomsParams selects an index and binds leading components of its
// ordering. Components must leave the trailing t slot implicit, so at most
// three may be bound.
type DatomsParams struct {
	Index      types.Keyword
	Components []any
	Offset     int
	Limit      int
	Chunk      int
	Timeout    time.Duration
}

// IndexRangeParams selects a range of an attribute's avet index.
type IndexRangeParams struct {
	Attrid  any
	Start   any
	End     any
	Offset  int
	Limit   int
	Chunk   int
	Timeout time.Duration
}

// PullParams declares a pull pattern over one entity.
type PullParams struct {
	Selector any
	EID      any
	Timeout  time.Duration
}

// QParams holds a query and its inputs. Database descriptors in Args are
// lowered to their wire form.
type QParams struct {
	Query   any
	Args    []any
	Offset  int
	Limit   int
	Chunk   int
	Timeout time.Duration
}

// TxRangeParams selects a range of the transaction log. Nil bounds are
// open.
type TxRangeParams struct {
	Start   *int64
	End     *int64
	Offset  int
	Limit   int
	Chunk   int
	Timeout time.Duration
}

// TransactParams carries the tx-data of a transaction.
type TransactParams struct {
	TxData  []any
	Timeout time.Duration
}

// PullResult resolves a Pull call. Result is an empty map when the entity
// has no matching datoms.
type PullResult struct {
	Result  any
	Anomaly *anomalies.Anomaly
}

// StatsResult resolves a DbStats call.
type StatsResult struct {
	Stats   any
	Anomaly *anomalies.Anomaly
}

// TxResult resolves a Transact or With call.
type TxResult struct {
	DbBefore types.Db
	DbAfter  types.Db
	TxData   []any
	Tempids  map[string]int64
	Anomaly  *anomalies.Anomaly
}

// WithDbResult resolves a WithDb call. The descriptor carries the
// next-token required by With.
type WithDbResult struct {
	Db      types.Db
	Anomaly *anomalies.Anomaly
}

// Datoms streams the datoms of an index, optionally narrowed by leading
// components.
func Datoms(ctx context.Context, db types.Db, p DatomsParams) <-chan types.Chunk {
	impl, anom := implFor(db.DatabaseID)
	if anom != nil {
		return errStream(anom)
	}
	payload := map[string]any{"index": p.Index}
	if anom := bindComponents(p.Index, p.Components, payload); anom != nil {
		return errStream(anom)
	}
	addDbModifiers(payload, db)
	addPaging(payload, p.Offset, p.Limit, p.Chunk)
	return pipeline.Stream(ctx, impl, pipeline.Request{
		Op:        pipeline.OpDatoms,
		Timeout:   p.Timeout,
		NextToken: db.NextToken,
		Payload:   payload,
	}, pipeline.ExtractData)
}

// IndexRange streams the avet range of an attribute between start and end.
func IndexRange(ctx context.Context, db types.Db, p IndexRangeParams) <-chan types.Chunk {
	impl, anom := implFor(db.DatabaseID)
	if anom != nil {
		return errStream(anom)
	}
	payload := map[string]any{"attrid": p.Attrid}
	if p.Start != nil {
		payload["start"] = p.Start
	}
	if p.End != nil {
		payload["end"] = p.End
	}
	addDbModifiers(payload, db)
	addPaging(payload, p.Offset, p.Limit, p.Chunk)
	return pipeline.Stream(ctx, impl, pipeline.Request{
		Op:        pipeline.OpIndexRange,
		Timeout:   p.Timeout,
		NextToken: db.NextToken,
		Payload:   payload,
	}, pipeline.ExtractData)
}

// Pull resolves a pull pattern against one entity.
func Pull(ctx context.Context, db types.Db, p PullParams) <-chan PullResult {
	out := make(chan PullResult, 1)
	go func() {
		defer close(out)
		impl, anom := implFor(db.DatabaseID)
		if anom != nil {
			out <- PullResult{Anomaly: anom}
			return
		}
		payload := map[string]any{"selector": p.Selector, "eid": p.EID}
		addDbModifiers(payload, db)
		resp := <-pipeline.QueueRequest(ctx, impl, pipeline.Request{
			Op:        pipeline.OpPull,
			Timeout:   p.Timeout,
			NextToken: db.NextToken,
			Payload:   payload,
		})
		if resp.Anomaly != nil {
			out <- PullResult{Anomaly: resp.Anomaly}
			return
		}
		result := resp.Result
		if result == nil {
			result = map[string]any{}
		}
		out <- PullResult{Result: result}
	}()
	return out
}

// Q streams the result of a declarative query. An unset timeout defaults to
// the q-specific 60s, not the connection's configured timeout.
func Q(ctx context.Context, c Connection, p QParams) <-chan types.Chunk {
	impl, anom := implOf(c)
	if anom != nil {
		return errStream(anom)
	}
	if p.Timeout <= 0 {
		p.Timeout = pipeline.DefaultQTimeout
	}
	args := make([]any, len(p.Args))
	for i, a := range p.Args {
		if db, ok := a.(types.Db); ok {
			args[i] = lowerDb(db)
		} else {
			args[i] = a
		}
	}
	payload := map[string]any{"query": p.Query, "args": args}
	addPaging(payload, p.Offset, p.Limit, p.Chunk)
	return pipeline.Stream(ctx, impl, pipeline.Request{
		Op:      pipeline.OpQ,
		Timeout: p.Timeout,
		Payload: payload,
	}, pipeline.ExtractData)
}

// TxRange streams transactions from the connection's log.
func TxRange(ctx context.Context, c Connection, p TxRangeParams) <-chan types.Chunk {
	impl, anom := implOf(c)
	if anom != nil {
		return errStream(anom)
	}
	payload := map[string]any{}
	if p.Start != nil {
		payload["start"] = *p.Start
	}
	if p.End != nil {
		payload["end"] = *p.End
	}
	addPaging(payload, p.Offset, p.Limit, p.Chunk)
	return pipeline.Stream(ctx, impl, pipeline.Request{
		Op:      pipeline.OpTxRange,
		Timeout: p.Timeout,
		Payload: payload,
	}, pipeline.ExtractData)
}

// Transact submits tx-data against the connection's database. Every call
// carries a fresh transaction id.
func Transact(ctx context.Context, c Connection, p TransactParams) <-chan TxResult {
	impl, anom := implOf(c)
	if anom != nil {
		return errPromise(anom)
	}
	return runTx(ctx, impl, pipeline.Request{
		Op:      pipeline.OpTransact,
		Timeout: p.Timeout,
		Payload: txPayload(p),
	})
}

// WithDb obtains a speculative database value to transact against with
// With.
func WithDb(ctx context.Context, c Connection) <-chan WithDbResult {
	out := make(chan WithDbResult, 1)
	go func() {
		defer close(out)
		impl, anom := implOf(c)
		if anom != nil {
			out <- WithDbResult{Anomaly: anom}
			return
		}
		resp := <-pipeline.QueueRequest(ctx, impl, pipeline.Request{Op: pipeline.OpWithDb})
		if resp.Anomaly != nil {
			out <- WithDbResult{Anomaly: resp.Anomaly}
			return
		}
		db := types.Db{DatabaseID: resp.DatabaseID, NextToken: resp.NextToken}
		if t, ok := codec.AsInt64(resp.Extra["t"]); ok {
			db.T = t
		}
		if nextT, ok := codec.AsInt64(resp.Extra["next-t"]); ok {
			db.NextT = nextT
		}
		out <- WithDbResult{Db: db}
	}()
	return out
}

// With applies tx-data to a speculative database value obtained from
// WithDb. The descriptor must carry a next-token.
func With(ctx context.Context, db types.Db, p TransactParams) <-chan TxResult {
	if db.NextToken == "" {
		return errPromise(anomalies.New(anomalies.Incorrect, "with requires a database value from with-db"))
	}
	impl, anom := implFor(db.DatabaseID)
	if anom != nil {
		return errPromise(anom)
	}
	return runTx(ctx, impl, pipeline.Request{
		Op:        pipeline.OpWith,
		Timeout:   p.Timeout,
		NextToken: db.NextToken,
		Payload:   txPayload(p),
	})
}

// DbStats resolves aggregate statistics about a database.
func DbStats(ctx context.Context, db types.Db) <-chan StatsResult {
	out := make(chan StatsResult, 1)
	go func() {
		defer close(out)
		impl, anom := implFor(db.DatabaseID)
		if anom != nil {
			out <- StatsResult{Anomaly: anom}
			return
		}
		payload := map[string]any{}
		addDbModifiers(payload, db)
		resp := <-pipeline.QueueRequest(ctx, impl, pipeline.Request{
			Op:        pipeline.OpDbStats,
			NextToken: db.NextToken,
			Payload:   payload,
		})
		if resp.Anomaly != nil {
			out <- StatsResult{Anomaly: resp.Anomaly}
			return
		}
		out <- StatsResult{Stats: resp.Result}
	}()
	return out
}

func txPayload(p TransactParams) map[string]any {
	return map[string]any{
		"tx-data": p.TxData,
		"tx-id":   uuid.NewString(),
	}
}

func runTx(ctx context.Context, impl *transport.ConnImpl, req pipeline.Request) <-chan TxResult {
	out := make(chan TxResult, 1)
	go func() {
		defer close(out)
		resp := <-pipeline.QueueRequest(ctx, impl, req)
		if resp.Anomaly != nil {
			out <- TxResult{Anomaly: resp.Anomaly}
			return
		}
		result := TxResult{TxData: resp.TxData, Tempids: resp.Tempids}
		if resp.DbBefore != nil {
			result.DbBefore = dbFromInfo(*resp.DbBefore)
		}
		if resp.DbAfter != nil {
			result.DbAfter = dbFromInfo(*resp.DbAfter)
		}
		out <- result
	}()
	return out
}

func dbFromInfo(info pipeline.DbInfo) types.Db {
	return types.Db{
		DatabaseID: info.DatabaseID,
		T:          info.T,
		NextT:      info.NextT,
		NextToken:  info.NextToken,
	}
}

// lowerDb renders a descriptor in its wire form for use as a query input.
func lowerDb(db types.Db) map[string]any {
	m := map[string]any{"database-id": db.DatabaseID}
	if db.T > 0 {
		m["t"] = db.T
	}
	if db.NextT > 0 {
		m["next-t"] = db.NextT
	}
	addDbModifiers(m, db)
	if db.NextToken != "" {
		m["next-token"] = db.NextToken
	}
	return m
}

// addDbModifiers attaches the descriptor's as-of/since/history narrowing.
func addDbModifiers(payload map[string]any, db types.Db) {
	if db.AsOfT != nil {
		payload["as-of"] = *db.AsOfT
	}
	if db.SinceT != nil {
		payload["since"] = *db.SinceT
	}
	if db.History {
		payload["history"] = true
	}
}

func addPaging(payload map[string]any, offset, limit, chunk int) {
	if offset > 0 {
		payload["offset"] = offset
	} else {
		payload["offset"] = pipeline.DefaultOffset
	}
	payload["limit"] = pipeline.OrDefaultLimit(limit)
	payload["chunk"] = pipeline.ClampChunk(chunk)
}

func errStream(a *anomalies.Anomaly) <-chan types.Chunk {
	out := make(chan types.Chunk, 1)
	out <- types.Chunk{Anomaly: a}
	close(out)
	return out
}

func errPromise(a *anomalies.Anomaly) <-chan TxResult {
	out := make(chan TxResult, 1)
	out <- TxResult{Anomaly: a}
	close(out)
	return out
}
