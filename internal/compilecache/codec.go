// codec.go serializes a *compiler.Executable to and from the flat binary
// format compilecache.go stores under each cache key. Grounded on
// internal/compiler/executable.go's field list; the one wrinkle is
// value.Value's KindHeapString constants, which hold an internal/heap
// string-interner handle that is only valid for the Heap that produced it
// (internal/value/value.go) — encodeValue writes the raw string bytes
// instead of the handle, and decodeValue re-interns them into whichever
// Heap the caller supplies, so a cached Executable can be replayed into a
// fresh realm.
package compilecache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/heap"
	"github.com/Voskan/esvm/internal/value"
)

// valueTag identifies a value.Value's Kind within the encoded constant pool;
// deliberately distinct from value.Kind's own numbering so the on-disk
// format doesn't break if internal/value ever reorders its Kind iota.
type valueTag uint8

const (
	tagUndefined valueTag = iota
	tagNull
	tagTrue
	tagFalse
	tagSmallInt
	tagDouble
	tagString // covers both KindSmallString and KindHeapString on encode
)

func encodeExecutable(buf *bytes.Buffer, exec *compiler.Executable, h *heap.Heap) error {
	writeString(buf, exec.Name)
	writeInt32(buf, int32(exec.ParamCount))
	writeInt32(buf, int32(exec.LocalCount))
	writeInt32(buf, int32(exec.CacheSlotCount))
	writeBool(buf, exec.IsGenerator)
	writeBool(buf, exec.IsAsync)
	writeBool(buf, exec.IsArrow)
	writeBool(buf, exec.IsDerivedConstructor)
	writeBool(buf, exec.IsClassConstructor)
	writeString(buf, exec.SourceText)

	writeInt32(buf, int32(len(exec.Instructions)))
	for _, ins := range exec.Instructions {
		buf.WriteByte(byte(ins.Op))
		writeInt32(buf, ins.A)
		writeInt32(buf, ins.B)
	}

	writeInt32(buf, int32(len(exec.Constants)))
	for _, v := range exec.Constants {
		if err := encodeValue(buf, v, h); err != nil {
			return err
		}
	}

	writeInt32(buf, int32(len(exec.IdentifierNames)))
	for _, s := range exec.IdentifierNames {
		writeString(buf, s)
	}

	writeInt32(buf, int32(len(exec.Nested)))
	for _, n := range exec.Nested {
		if err := encodeExecutable(buf, n, h); err != nil {
			return err
		}
	}
	return nil
}

func decodeExecutable(r *bytes.Reader, h *heap.Heap) (*compiler.Executable, error) {
	exec := &compiler.Executable{}
	var err error
	if exec.Name, err = readString(r); err != nil {
		return nil, err
	}
	paramCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	exec.ParamCount = int(paramCount)
	localCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	exec.LocalCount = int(localCount)
	slotCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	exec.CacheSlotCount = int(slotCount)
	if exec.IsGenerator, err = readBool(r); err != nil {
		return nil, err
	}
	if exec.IsAsync, err = readBool(r); err != nil {
		return nil, err
	}
	if exec.IsArrow, err = readBool(r); err != nil {
		return nil, err
	}
	if exec.IsDerivedConstructor, err = readBool(r); err != nil {
		return nil, err
	}
	if exec.IsClassConstructor, err = readBool(r); err != nil {
		return nil, err
	}
	if exec.SourceText, err = readString(r); err != nil {
		return nil, err
	}

	instrCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	exec.Instructions = make([]compiler.Instruction, instrCount)
	for i := range exec.Instructions {
		op, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		a, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		b, err := readInt32(r)
		if err != nil {
			return nil, err
		}
		exec.Instructions[i] = compiler.Instruction{Op: compiler.Op(op), A: a, B: b}
	}

	constCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	exec.Constants = make([]value.Value, constCount)
	for i := range exec.Constants {
		v, err := decodeValue(r, h)
		if err != nil {
			return nil, err
		}
		exec.Constants[i] = v
	}

	identCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	exec.IdentifierNames = make([]string, identCount)
	for i := range exec.IdentifierNames {
		if exec.IdentifierNames[i], err = readString(r); err != nil {
			return nil, err
		}
	}

	nestedCount, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	exec.Nested = make([]*compiler.Executable, nestedCount)
	for i := range exec.Nested {
		if exec.Nested[i], err = decodeExecutable(r, h); err != nil {
			return nil, err
		}
	}
	return exec, nil
}

func encodeValue(buf *bytes.Buffer, v value.Value, h *heap.Heap) error {
	switch v.Kind() {
	case value.KindUndefined:
		buf.WriteByte(byte(tagUndefined))
	case value.KindNull:
		buf.WriteByte(byte(tagNull))
	case value.KindBoolean:
		if v.AsBool() {
			buf.WriteByte(byte(tagTrue))
		} else {
			buf.WriteByte(byte(tagFalse))
		}
	case value.KindSmallInt:
		buf.WriteByte(byte(tagSmallInt))
		writeInt32(buf, v.AsInt32())
	case value.KindDouble:
		buf.WriteByte(byte(tagDouble))
		var bits [8]byte
		binary.LittleEndian.PutUint64(bits[:], math.Float64bits(v.AsFloat64()))
		buf.Write(bits[:])
	case value.KindSmallString:
		buf.WriteByte(byte(tagString))
		writeString(buf, v.AsSmallString())
	case value.KindHeapString:
		buf.WriteByte(byte(tagString))
		writeString(buf, h.StringValue(v))
	default:
		return fmt.Errorf("compilecache: constant pool contains unsupported value kind %d", v.Kind())
	}
	return nil
}

func decodeValue(r *bytes.Reader, h *heap.Heap) (value.Value, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return value.Value{}, err
	}
	switch valueTag(tagByte) {
	case tagUndefined:
		return value.Undefined, nil
	case tagNull:
		return value.Null, nil
	case tagTrue:
		return value.True, nil
	case tagFalse:
		return value.False, nil
	case tagSmallInt:
		n, err := readInt32(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(n), nil
	case tagDouble:
		var bits [8]byte
		if _, err := r.Read(bits[:]); err != nil {
			return value.Value{}, err
		}
		return value.Double(math.Float64frombits(binary.LittleEndian.Uint64(bits[:]))), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		if sv, ok := value.SmallString(s); ok {
			return sv, nil
		}
		return h.InternString(s), nil
	default:
		return value.Value{}, fmt.Errorf("compilecache: unknown value tag %d", tagByte)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt32(buf, int32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readInt32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return "", err
	}
	return string(b), nil
}

func writeInt32(buf *bytes.Buffer, n int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(n))
	buf.Write(b[:])
}

func readInt32(r *bytes.Reader) (int32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
