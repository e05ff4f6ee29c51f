package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

type FieldKind string

const (
	FieldString  FieldKind = "string"
	FieldNumber  FieldKind = "number"
	FieldCounter FieldKind = "counter"
	FieldBool    FieldKind = "bool"
	FieldList    FieldKind = "list"
	FieldObject  FieldKind = "object"
)

func (k FieldKind) IsValid() bool {
	switch k {
	case FieldString, FieldNumber, FieldCounter, FieldBool, FieldList, FieldObject:
		return true
	default:
		return false
	}
}

// FieldValue is a tagged union. Exactly one of the value slots is meaningful,
// selected by Kind. Counter is a number whose merges take the maximum instead
// of either raw value.
type FieldValue struct {
	Kind   FieldKind
	Str    string
	Num    float64
	Bool   bool
	List   []ListItem
	Object map[string]FieldValue
}

// ListItem is one element of a list field. Key is the stable identity used
// for union merges across revisions.
type ListItem struct {
	Key   string     `json:"key"`
	Value FieldValue `json:"value"`
}

type Fields map[string]FieldValue

func StringValue(s string) FieldValue  { return FieldValue{Kind: FieldString, Str: s} }
func NumberValue(n float64) FieldValue { return FieldValue{Kind: FieldNumber, Num: n} }
func CounterValue(n float64) FieldValue {
	return FieldValue{Kind: FieldCounter, Num: n}
}
func BoolValue(b bool) FieldValue { return FieldValue{Kind: FieldBool, Bool: b} }
func ListValue(items ...ListItem) FieldValue {
	return FieldValue{Kind: FieldList, List: items}
}
func ObjectValue(m map[string]FieldValue) FieldValue {
	return FieldValue{Kind: FieldObject, Object: m}
}

func (v FieldValue) IsEmpty() bool {
	switch v.Kind {
	case FieldString:
		return v.Str == ""
	case FieldList:
		return len(v.List) == 0
	case FieldObject:
		return len(v.Object) == 0
	default:
		return false
	}
}

func (v FieldValue) Equal(other FieldValue) bool {
	return bytes.Equal(v.canonical(), other.canonical())
}

func (v FieldValue) Clone() FieldValue {
	out := FieldValue{Kind: v.Kind, Str: v.Str, Num: v.Num, Bool: v.Bool}
	if v.List != nil {
		out.List = make([]ListItem, len(v.List))
		for i, item := range v.List {
			out.List[i] = ListItem{Key: item.Key, Value: item.Value.Clone()}
		}
	}
	if v.Object != nil {
		out.Object = make(map[string]FieldValue, len(v.Object))
		for k, val := range v.Object {
			out.Object[k] = val.Clone()
		}
	}
	return out
}

// Validate checks that the union is well formed: a known kind, and every
// nested value well formed too. List items must carry a non-empty key.
func (v FieldValue) Validate() error {
	if !v.Kind.IsValid() {
		return fmt.Errorf("unknown field kind %q", v.Kind)
	}
	if v.Kind == FieldList {
		seen := make(map[string]bool, len(v.List))
		for _, item := range v.List {
			if item.Key == "" {
				return fmt.Errorf("list item missing identity key")
			}
			if seen[item.Key] {
				return fmt.Errorf("duplicate list item key %q", item.Key)
			}
			seen[item.Key] = true
			if err := item.Value.Validate(); err != nil {
				return err
			}
		}
	}
	if v.Kind == FieldObject {
		for name, nested := range v.Object {
			if err := nested.Validate(); err != nil {
				return fmt.Errorf("object field %q: %w", name, err)
			}
		}
	}
	return nil
}

// canonical renders a deterministic byte form used for equality and checksums.
// Map iteration order must never leak into the output.
func (v FieldValue) canonical() []byte {
	var b bytes.Buffer
	v.appendCanonical(&b)
	return b.Bytes()
}

func (v FieldValue) appendCanonical(b *bytes.Buffer) {
	b.WriteString(string(v.Kind))
	b.WriteByte(':')
	switch v.Kind {
	case FieldString:
		b.WriteString(strconv.Quote(v.Str))
	case FieldNumber, FieldCounter:
		b.WriteString(strconv.FormatFloat(v.Num, 'g', -1, 64))
	case FieldBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case FieldList:
		items := make([]ListItem, len(v.List))
		copy(items, v.List)
		sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
		b.WriteByte('[')
		for _, item := range items {
			b.WriteString(strconv.Quote(item.Key))
			b.WriteByte('=')
			item.Value.appendCanonical(b)
			b.WriteByte(',')
		}
		b.WriteByte(']')
	case FieldObject:
		names := make([]string, 0, len(v.Object))
		for name := range v.Object {
			names = append(names, name)
		}
		sort.Strings(names)
		b.WriteByte('{')
		for _, name := range names {
			b.WriteString(strconv.Quote(name))
			b.WriteByte('=')
			val := v.Object[name]
			val.appendCanonical(b)
			b.WriteByte(',')
		}
		b.WriteByte('}')
	}
}

type fieldValueJSON struct {
	Kind  FieldKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	var inner interface{}
	switch v.Kind {
	case FieldString:
		inner = v.Str
	case FieldNumber, FieldCounter:
		inner = v.Num
	case FieldBool:
		inner = v.Bool
	case FieldList:
		items := v.List
		if items == nil {
			items = []ListItem{}
		}
		inner = items
	case FieldObject:
		obj := v.Object
		if obj == nil {
			obj = map[string]FieldValue{}
		}
		inner = obj
	default:
		return nil, fmt.Errorf("cannot marshal field kind %q", v.Kind)
	}
	raw, err := json.Marshal(inner)
	if err != nil {
		return nil, err
	}
	return json.Marshal(fieldValueJSON{Kind: v.Kind, Value: raw})
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var wire fieldValueJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := FieldValue{Kind: wire.Kind}
	switch wire.Kind {
	case FieldString:
		if err := json.Unmarshal(wire.Value, &out.Str); err != nil {
			return err
		}
	case FieldNumber, FieldCounter:
		if err := json.Unmarshal(wire.Value, &out.Num); err != nil {
			return err
		}
	case FieldBool:
		if err := json.Unmarshal(wire.Value, &out.Bool); err != nil {
			return err
		}
	case FieldList:
		if err := json.Unmarshal(wire.Value, &out.List); err != nil {
			return err
		}
	case FieldObject:
		if err := json.Unmarshal(wire.Value, &out.Object); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot unmarshal field kind %q", wire.Kind)
	}
	*v = out
	return nil
}

func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for name, v := range f {
		out[name] = v.Clone()
	}
	return out
}

// Canonical renders the whole field set deterministically, field names sorted.
func (f Fields) Canonical() []byte {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	var b bytes.Buffer
	for _, name := range names {
		b.WriteString(strconv.Quote(name))
		b.WriteByte('=')
		v := f[name]
		v.appendCanonical(&b)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func (f Fields) Equal(other Fields) bool {
	return bytes.Equal(f.Canonical(), other.Canonical())
}
