package godb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Type is the closed set of field types this engine understands.
type Type int

const (
	IntType Type = iota
	StringType
)

func (t Type) String() string {
	if t == StringType {
		return "STRING"
	}
	return "INT32"
}

// FieldType names one column of a TupleDesc: its type, and optionally a
// display name used for lookup and pretty-printing.
type FieldType struct {
	Fname string
	Ftype Type
}

// TupleDesc is the schema of a Tuple: an ordered, non-empty sequence of
// fields. Two TupleDescs are equal iff their Type sequences match; field
// names play no part in equality.
type TupleDesc struct {
	Fields []FieldType
}

func (td *TupleDesc) equals(other *TupleDesc) bool {
	if len(td.Fields) != len(other.Fields) {
		return false
	}
	for i := range td.Fields {
		if td.Fields[i].Ftype != other.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// fieldIndex returns the index of the first field named name.
func (td *TupleDesc) fieldIndex(name string) (int, error) {
	for i, f := range td.Fields {
		if f.Fname == name {
			return i, nil
		}
	}
	return -1, newErr(DbError, fmt.Sprintf("no field named %q", name))
}

// merge returns a new TupleDesc whose fields are td's followed by other's,
// as used to build the output schema of a join.
func (td *TupleDesc) merge(other *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(td.Fields)+len(other.Fields))
	fields = append(fields, td.Fields...)
	fields = append(fields, other.Fields...)
	return &TupleDesc{Fields: fields}
}

// bytesPerTuple is the fixed on-disk size of one tuple under this schema.
func (td *TupleDesc) bytesPerTuple() int {
	size := 0
	for _, f := range td.Fields {
		switch f.Ftype {
		case IntType:
			size += 4
		case StringType:
			size += 4 + MaxStringLen()
		}
	}
	return size
}

// Field is a tagged value held by a Tuple. IntField and StringField are the
// only implementations; the set is closed by construction, not by a shared
// base type.
type Field interface {
	compare(op BoolOp, other Field) (bool, error)
	writeTo(buf *bytes.Buffer) error
	String() string
}

// IntField is an INT32 value.
type IntField struct {
	Value int32
}

// StringField is a STRING value, truncated to MaxStringLen() bytes on write.
type StringField struct {
	Value string
}

func (f IntField) String() string {
	return strconv.FormatInt(int64(f.Value), 10)
}

func (f StringField) String() string {
	return f.Value
}

func (f IntField) compare(op BoolOp, other Field) (bool, error) {
	o, ok := other.(IntField)
	if !ok {
		return false, newErr(DbError, fmt.Sprintf("cannot compare IntField with %T", other))
	}
	return evalOp(op, int64(f.Value), int64(o.Value)), nil
}

func (f StringField) compare(op BoolOp, other Field) (bool, error) {
	o, ok := other.(StringField)
	if !ok {
		return false, newErr(DbError, fmt.Sprintf("cannot compare StringField with %T", other))
	}
	switch {
	case f.Value < o.Value:
		return evalOp(op, -1, 0), nil
	case f.Value > o.Value:
		return evalOp(op, 1, 0), nil
	default:
		return evalOp(op, 0, 0), nil
	}
}

func evalOp(op BoolOp, a, b int64) bool {
	switch op {
	case Equals:
		return a == b
	case NotEquals:
		return a != b
	case LessThan:
		return a < b
	case LessThanOrEqual:
		return a <= b
	case GreaterThan:
		return a > b
	case GreaterThanOrEqual:
		return a >= b
	default:
		return false
	}
}

func (f IntField) writeTo(buf *bytes.Buffer) error {
	return binary.Write(buf, binary.BigEndian, f.Value)
}

func (f StringField) writeTo(buf *bytes.Buffer) error {
	raw := []byte(f.Value)
	if len(raw) > MaxStringLen() {
		raw = raw[:MaxStringLen()]
	}
	if err := binary.Write(buf, binary.BigEndian, int32(len(raw))); err != nil {
		return err
	}
	padded := make([]byte, MaxStringLen())
	copy(padded, raw)
	_, err := buf.Write(padded)
	return err
}

func readIntField(r *bytes.Reader) (IntField, error) {
	var v int32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: v}, nil
}

func readStringField(r *bytes.Reader) (StringField, error) {
	var n int32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return StringField{}, err
	}
	raw := make([]byte, MaxStringLen())
	if _, err := r.Read(raw); err != nil {
		return StringField{}, err
	}
	if int(n) > len(raw) {
		n = int32(len(raw))
	}
	return StringField{Value: string(raw[:n])}, nil
}

// Tuple is a row valued according to Desc. Rid identifies its physical
// location once it has been placed on a page; it is nil for tuples not yet
// inserted, or whose slot has since been deleted.
type Tuple struct {
	Desc   TupleDesc
	Fields []Field
	Rid    *RecordId
}

func (t *Tuple) writeTo(buf *bytes.Buffer) error {
	for _, f := range t.Fields {
		if err := f.writeTo(buf); err != nil {
			return err
		}
	}
	return nil
}

func readTupleFrom(r *bytes.Reader, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc}
	for _, ft := range desc.Fields {
		var (
			f   Field
			err error
		)
		switch ft.Ftype {
		case IntType:
			f, err = readIntField(r)
		case StringType:
			f, err = readStringField(r)
		}
		if err != nil {
			return nil, wrapErr(IOError, "read tuple field", err)
		}
		t.Fields = append(t.Fields, f)
	}
	return t, nil
}

func (t *Tuple) equals(other *Tuple) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.Desc.equals(&other.Desc) || len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples concatenates t1's fields with t2's, producing the merged
// TupleDesc a Join operator exposes downstream.
func joinTuples(t1, t2 *Tuple) *Tuple {
	desc := t1.Desc.merge(&t2.Desc)
	fields := make([]Field, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	return &Tuple{Desc: *desc, Fields: fields}
}

// PrettyPrintString renders the tuple as a comma-separated row, used by
// cmd/relstore-demo.
func (t *Tuple) PrettyPrintString() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}
