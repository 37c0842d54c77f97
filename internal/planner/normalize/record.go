package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// object is a JSON object that remembers key order. Model output often
// carries meaning in the order of its keys (implicit sections), which a Go
// map would lose.
type object struct {
	keys   []string
	values map[string]any
	folded map[string]string
}

func newObject() *object {
	return &object{values: map[string]any{}, folded: map[string]string{}}
}

func (o *object) set(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
	f := foldKey(key)
	if _, ok := o.folded[f]; !ok {
		o.folded[f] = key
	}
}

// lookup finds the first synonym present, matching keys case and accent insensitively.
func (o *object) lookup(synonyms []string) (any, bool) {
	if o == nil {
		return nil, false
	}
	for _, s := range synonyms {
		if k, ok := o.folded[s]; ok {
			return o.values[k], true
		}
	}
	return nil, false
}

// lookupAll returns every present synonym's value, in synonym order.
func (o *object) lookupAll(synonyms []string) []any {
	if o == nil {
		return nil
	}
	var out []any
	for _, s := range synonyms {
		if k, ok := o.folded[s]; ok {
			out = append(out, o.values[k])
		}
	}
	return out
}

var errTrailingData = errors.New("trailing data after JSON value")

// decodeOrdered parses a single JSON value. Objects become *object, arrays
// []any, numbers json.Number.
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	return v, nil
}

func readValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		obj := newObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T", kt)
			}
			val, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			obj.set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := readValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", d)
	}
}

// fromGo converts an in-memory Go value (SDK maps, structs) into the ordered
// form. Map keys come out sorted, struct fields keep declaration order.
func fromGo(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case *object:
		return t, true
	case map[string]any:
		obj := newObject()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			inner, _ := fromGo(t[k])
			obj.set(k, inner)
		}
		return obj, true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			inner, _ := fromGo(e)
			out = append(out, inner)
		}
		return out, true
	case string, bool, json.Number, float64, int, int64:
		return t, true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	out, err := decodeOrdered(b)
	if err != nil {
		return nil, false
	}
	return out, true
}
