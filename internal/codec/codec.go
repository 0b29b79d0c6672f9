// Package codec is the marshalling boundary between native values and the
// wire. Requests are encoded as a compact schema-less tagged binary format
// (msgpack); responses are decoded by content type into the native value
// space, reconstructing fact tuples and keywords on the way in.
package codec

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-msgpack/v2/codec"
	"olympos.io/encoding/edn"

	"github.com/vitaliisemenov/datomic-client/pkg/anomalies"
	"github.com/vitaliisemenov/datomic-client/pkg/types"
)

// Format names a wire encoding understood by Unmarshal.
type Format string

const (
	FormatMsgpack Format = "msgpack"
	FormatJSON    Format = "json"
	FormatEDN     Format = "edn"
)

// Content types dispatched by DecodeBody.
const (
	ContentTypeMsgpack = "application/transit+msgpack"
	ContentTypeJSON    = "application/transit+json"
	ContentTypeEDN     = "application/edn"
	ContentTypeText    = "text/plain"
)

// datomExtTag is the msgpack extension id carrying a fact tuple, mirroring
// the textual formats' "~#datom" tagged value.
const datomExtTag = 0x64

// datomTag is the key marking a tagged fact tuple in the textual formats.
const datomTag = "~#datom"

// keywordPrefix marks a keyword transported as a string.
const keywordPrefix = "~:"

var handle = newHandle()

func newHandle() *codec.MsgpackHandle {
	h := &codec.MsgpackHandle{}
	h.RawToString = true
	h.WriteExt = true
	h.MapType = reflect.TypeOf(map[string]any(nil))
	if err := h.SetBytesExt(reflect.TypeOf(types.Datom{}), datomExtTag, datomExt{}); err != nil {
		panic(err)
	}
	return h
}

// datomExt encodes a fact tuple as a msgpack extension whose payload is the
// encoded (e, a, v, t, added) 5-array.
type datomExt struct{}

func (datomExt) WriteExt(v any) []byte {
	var d types.Datom
	switch t := v.(type) {
	case types.Datom:
		d = t
	case *types.Datom:
		d = *t
	default:
		panic(fmt.Sprintf("datom ext: unexpected type %T", v))
	}
	var out []byte
	enc := codec.NewEncoderBytes(&out, handle)
	if err := enc.Encode([]any{prepare(d.E), prepare(d.A), prepare(d.V), d.T, d.Added}); err != nil {
		panic(err)
	}
	return out
}

func (datomExt) ReadExt(dst any, src []byte) {
	var fields []any
	dec := codec.NewDecoderBytes(src, handle)
	if err := dec.Decode(&fields); err != nil {
		panic(err)
	}
	d, err := datomFromSeq(fields)
	if err != nil {
		panic(err)
	}
	*dst.(*types.Datom) = d
}

// Encoded is a marshalled payload. Bytes may be longer than Length when the
// encoder reuses an arena; only the first Length bytes are the payload.
type Encoded struct {
	Bytes  []byte
	Length int
}

// Marshal encodes a native value as the binary wire format.
func Marshal(v any) (Encoded, error) {
	var out []byte
	enc := codec.NewEncoderBytes(&out, handle)
	if err := enc.Encode(prepare(v)); err != nil {
		return Encoded{}, err
	}
	return Encoded{Bytes: out, Length: len(out)}, nil
}

// Unmarshal decodes bytes of the given format into the native value space.
// Fact tuples and keywords are reconstructed from their tagged forms.
func Unmarshal(r io.Reader, format Format) (any, error) {
	switch format {
	case FormatMsgpack:
		var v any
		dec := codec.NewDecoder(r, handle)
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return revive(v), nil
	case FormatJSON:
		var v any
		if err := json.NewDecoder(r).Decode(&v); err != nil {
			return nil, err
		}
		return revive(v), nil
	case FormatEDN:
		var v any
		if err := edn.NewDecoder(r).Decode(&v); err != nil {
			return nil, err
		}
		return revive(v), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// DecodeBody decodes a response body according to its content type.
// Unrecognized content types yield a fault anomaly; decode failures do too.
func DecodeBody(contentType string, r io.Reader) (any, *anomalies.Anomaly) {
	ct := contentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)

	var (
		v   any
		err error
	)
	switch ct {
	case ContentTypeMsgpack:
		v, err = Unmarshal(r, FormatMsgpack)
	case ContentTypeJSON:
		v, err = Unmarshal(r, FormatJSON)
	case ContentTypeEDN:
		v, err = Unmarshal(r, FormatEDN)
	case ContentTypeText:
		var raw []byte
		raw, err = io.ReadAll(r)
		v = string(raw)
	default:
		return nil, anomalies.Newf(anomalies.Fault, "Cannot unmarshal content-type %s", contentType)
	}
	if err != nil {
		return nil, anomalies.FromError(err)
	}
	return v, nil
}
