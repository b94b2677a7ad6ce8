package jsoncfg

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind identifies which member of the Value union is populated.
type Kind uint8

const (
	KindString Kind = iota
	KindList
	KindRecord
)

// Value is a closed union over the shapes language-model output is reduced to:
// a string, a list of strings, or a nested record.
type Value struct {
	Kind   Kind
	Str    string
	List   []string
	Record Record
}

func String(s string) Value { return Value{Kind: KindString, Str: s} }

func List(items ...string) Value { return Value{Kind: KindList, List: items} }

func Nested(r Record) Value { return Value{Kind: KindRecord, Record: r} }

// IsZero reports whether the value carries no renderable text.
func (v Value) IsZero() bool {
	switch v.Kind {
	case KindList:
		for _, item := range v.List {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	case KindRecord:
		for _, f := range v.Record.fields {
			if !f.Value.IsZero() {
				return false
			}
		}
		return true
	default:
		return strings.TrimSpace(v.Str) == ""
	}
}

// Text renders the value on a single line.
func (v Value) Text() string {
	switch v.Kind {
	case KindList:
		items := make([]string, 0, len(v.List))
		for _, item := range v.List {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return strings.Join(items, ", ")
	case KindRecord:
		pairs := make([]string, 0, len(v.Record.fields))
		for _, f := range v.Record.fields {
			if f.Value.IsZero() {
				continue
			}
			pairs = append(pairs, f.Key+": "+f.Value.Text())
		}
		return strings.Join(pairs, "; ")
	default:
		return strings.TrimSpace(v.Str)
	}
}

func (v Value) clone() Value {
	out := v
	if v.List != nil {
		out.List = append([]string(nil), v.List...)
	}
	out.Record = v.Record.Clone()
	return out
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindRecord:
		return v.Record.MarshalJSON()
	default:
		return json.Marshal(v.Str)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	n, err := parseNode(data)
	if err != nil {
		return err
	}
	parsed, ok := n.toValue()
	if !ok {
		*v = Value{}
		return nil
	}
	*v = parsed
	return nil
}

// Field is one key/value entry of a Record.
type Field struct {
	Key   string
	Value Value
}

// Record is an insertion-ordered mapping of string keys to Values. Key order
// follows the source document so rendering stays deterministic.
type Record struct {
	fields []Field
}

func NewRecord(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.Set(f.Key, f.Value)
	}
	return r
}

// Set replaces the value stored under key, appending the key when it is new.
func (r *Record) Set(key string, v Value) {
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields[i].Value = v
			return
		}
	}
	r.fields = append(r.fields, Field{Key: key, Value: v})
}

func (r Record) Get(key string) (Value, bool) {
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (r *Record) Delete(key string) {
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields = append(r.fields[:i], r.fields[i+1:]...)
			return
		}
	}
}

// Fields returns a copy of the entries in order.
func (r Record) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

func (r Record) Len() int { return len(r.fields) }

// Clone returns a deep copy.
func (r Record) Clone() Record {
	if r.fields == nil {
		return Record{}
	}
	out := Record{fields: make([]Field, len(r.fields))}
	for i, f := range r.fields {
		out.fields[i] = Field{Key: f.Key, Value: f.Value.clone()}
	}
	return out
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRecord(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRecord decodes any JSON document into a Record. Objects keep their key
// order, null entries are dropped, and a non-object document is stored under
// the "description" key so callers never lose the payload.
func ParseRecord(data []byte) (Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Record{}, nil
	}
	n, err := parseNode(data)
	if err != nil {
		return Record{}, err
	}
	switch n.kind {
	case nodeObject:
		return n.toRecord(), nil
	case nodeNull:
		return Record{}, nil
	default:
		v, _ := n.toValue()
		return NewRecord(Field{Key: "description", Value: v}), nil
	}
}

// ErrNotObject is returned by ParseObject when the payload is valid JSON but
// not an object.
var ErrNotObject = errors.New("jsoncfg: payload is not a JSON object")

// ParseObject extracts the JSON fragment from free-form model output and
// decodes it, requiring the fragment to be an object.
func ParseObject(raw string) (Record, error) {
	fragment := ExtractJSONFragment(raw)
	if fragment == "" {
		return Record{}, ErrNotObject
	}
	n, err := parseNode([]byte(fragment))
	if err != nil {
		return Record{}, err
	}
	if n.kind != nodeObject {
		return Record{}, ErrNotObject
	}
	return n.toRecord(), nil
}

type nodeKind uint8

const (
	nodeNull nodeKind = iota
	nodeScalar
	nodeArray
	nodeObject
)

// node is the order-preserving intermediate form produced by the token decoder.
type node struct {
	kind nodeKind
	str  string
	keys []string
	vals []node
}

func parseNode(data []byte) (node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decodeNode(dec)
	if err != nil {
		return node{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return node{}, errors.New("jsoncfg: unexpected data after JSON value")
	}
	return n, nil
}

func decodeNode(dec *json.Decoder) (node, error) {
	tok, err := dec.Token()
	if err != nil {
		return node{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			n := node{kind: nodeObject}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return node{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return node{}, fmt.Errorf("jsoncfg: unexpected object key %v", keyTok)
				}
				child, err := decodeNode(dec)
				if err != nil {
					return node{}, err
				}
				n.keys = append(n.keys, key)
				n.vals = append(n.vals, child)
			}
			if _, err := dec.Token(); err != nil {
				return node{}, err
			}
			return n, nil
		case '[':
			n := node{kind: nodeArray}
			for dec.More() {
				child, err := decodeNode(dec)
				if err != nil {
					return node{}, err
				}
				n.vals = append(n.vals, child)
			}
			if _, err := dec.Token(); err != nil {
				return node{}, err
			}
			return n, nil
		}
		return node{}, fmt.Errorf("jsoncfg: unexpected delimiter %v", t)
	case string:
		return node{kind: nodeScalar, str: t}, nil
	case json.Number:
		return node{kind: nodeScalar, str: t.String()}, nil
	case bool:
		return node{kind: nodeScalar, str: strconv.FormatBool(t)}, nil
	case nil:
		return node{kind: nodeNull}, nil
	}
	return node{}, fmt.Errorf("jsoncfg: unexpected token %v", tok)
}

func (n node) toRecord() Record {
	var r Record
	for i, key := range n.keys {
		if v, ok := n.vals[i].toValue(); ok {
			r.Set(key, v)
		}
	}
	return r
}

func (n node) toValue() (Value, bool) {
	switch n.kind {
	case nodeScalar:
		return String(n.str), true
	case nodeObject:
		return Nested(n.toRecord()), true
	case nodeArray:
		items := make([]string, 0, len(n.vals))
		for _, child := range n.vals {
			if s := child.flatten(); s != "" {
				items = append(items, s)
			}
		}
		return List(items...), true
	default:
		return Value{}, false
	}
}

// flatten renders a node as one string. Objects render their first value
// followed by the remaining values in parentheses, so a palette entry such as
// {"hex":"#fff","name":"white"} becomes "#fff (white)".
func (n node) flatten() string {
	switch n.kind {
	case nodeScalar:
		return strings.TrimSpace(n.str)
	case nodeArray:
		parts := make([]string, 0, len(n.vals))
		for _, child := range n.vals {
			if s := child.flatten(); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case nodeObject:
		var head string
		var rest []string
		for _, child := range n.vals {
			s := child.flatten()
			if s == "" {
				continue
			}
			if head == "" {
				head = s
				continue
			}
			rest = append(rest, s)
		}
		if len(rest) == 0 {
			return head
		}
		return head + " (" + strings.Join(rest, ", ") + ")"
	default:
		return ""
	}
}
