package spill

import (
	"bufio"
	"fmt"
	"os"

	"github.com/klauspost/compress/s2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Value tags written ahead of every value. msgpack alone narrows integer
// widths on decode; the tag restores the canonical tuple types.
const (
	tagNil uint8 = iota
	tagBool
	tagInt
	tagFloat
	tagString
)

// segment is one spilled run of values in an s2-compressed msgpack file.
type segment struct {
	path  string
	count int
}

func writeSegment(dir string, values []tuple.Tuple) (seg *segment, err error) {
	f, err := os.CreateTemp(dir, "gridflow-spill-*.s2")
	if err != nil {
		return nil, fmt.Errorf("creating segment file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	zw := s2.NewWriter(f)
	enc := msgpack.NewEncoder(zw)
	for _, t := range values {
		if err := encodeTuple(enc, t); err != nil {
			return nil, fmt.Errorf("encoding segment %s: %w", f.Name(), err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flushing segment %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing segment %s: %w", f.Name(), err)
	}
	return &segment{path: f.Name(), count: len(values)}, nil
}

func encodeTuple(enc *msgpack.Encoder, t tuple.Tuple) error {
	if err := enc.EncodeArrayLen(len(t)); err != nil {
		return err
	}
	for _, v := range t {
		if err := encodeValue(enc, tuple.Canonical(v)); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(enc *msgpack.Encoder, v any) error {
	switch val := v.(type) {
	case nil:
		return enc.EncodeUint8(tagNil)
	case bool:
		if err := enc.EncodeUint8(tagBool); err != nil {
			return err
		}
		return enc.EncodeBool(val)
	case int64:
		if err := enc.EncodeUint8(tagInt); err != nil {
			return err
		}
		return enc.EncodeInt(val)
	case float64:
		if err := enc.EncodeUint8(tagFloat); err != nil {
			return err
		}
		return enc.EncodeFloat64(val)
	case string:
		if err := enc.EncodeUint8(tagString); err != nil {
			return err
		}
		return enc.EncodeString(val)
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}

func (s *segment) open() (*segmentReader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening segment: %w", err)
	}
	zr := s2.NewReader(bufio.NewReader(f))
	return &segmentReader{f: f, dec: msgpack.NewDecoder(zr), remaining: s.count}, nil
}

func (s *segment) remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing segment: %w", err)
	}
	return nil
}

type segmentReader struct {
	f         *os.File
	dec       *msgpack.Decoder
	remaining int
}

// next decodes the following tuple; ok is false once the segment is exhausted.
func (r *segmentReader) next() (t tuple.Tuple, ok bool, err error) {
	if r.remaining == 0 {
		return nil, false, nil
	}
	n, err := r.dec.DecodeArrayLen()
	if err != nil {
		return nil, false, fmt.Errorf("decoding segment %s: %w", r.f.Name(), err)
	}
	t = make(tuple.Tuple, n)
	for i := range t {
		if t[i], err = decodeValue(r.dec); err != nil {
			return nil, false, fmt.Errorf("decoding segment %s: %w", r.f.Name(), err)
		}
	}
	r.remaining--
	return t, true, nil
}

func decodeValue(dec *msgpack.Decoder) (any, error) {
	tag, err := dec.DecodeUint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagNil:
		return nil, nil
	case tagBool:
		return dec.DecodeBool()
	case tagInt:
		return dec.DecodeInt64()
	case tagFloat:
		return dec.DecodeFloat64()
	case tagString:
		return dec.DecodeString()
	default:
		return nil, fmt.Errorf("unknown value tag %d", tag)
	}
}

func (r *segmentReader) close() error {
	return r.f.Close()
}
