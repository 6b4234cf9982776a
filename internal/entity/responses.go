package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// IdentifierField is the response key carrying the extracted roll number.
// It always sorts first so exports stay diff-stable.
const IdentifierField = "Roll"

var digitsRe = regexp.MustCompile(`(\d+)`)

// Responses is a question->answer map that keeps a deterministic key order:
// the identifier field first, remaining keys by embedded numeric index when
// present (q1, q2, ..., q10), else lexically. JSON round-trips preserve the
// stored order.
type Responses struct {
	keys   []string
	values map[string]string
}

// NewResponses builds an ordered response map from a plain map, applying the
// canonical ordering.
func NewResponses(m map[string]string) Responses {
	r := Responses{}
	if _, ok := m[IdentifierField]; ok {
		r.set(IdentifierField, m[IdentifierField])
	}
	other := make([]string, 0, len(m))
	for k := range m {
		if k != IdentifierField {
			other = append(other, k)
		}
	}
	sort.SliceStable(other, func(i, j int) bool {
		ni, iok := embeddedIndex(other[i])
		nj, jok := embeddedIndex(other[j])
		switch {
		case iok && jok && ni != nj:
			return ni < nj
		case iok != jok:
			return iok // keys with a numeric index sort before those without
		default:
			return other[i] < other[j]
		}
	})
	for _, k := range other {
		r.set(k, m[k])
	}
	return r
}

func embeddedIndex(k string) (int, bool) {
	m := digitsRe.FindString(k)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r *Responses) set(k, v string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, exists := r.values[k]; !exists {
		r.keys = append(r.keys, k)
	}
	r.values[k] = v
}

// Get returns the answer for key k.
func (r Responses) Get(k string) (string, bool) {
	v, ok := r.values[k]
	return v, ok
}

// Keys returns the keys in stored order.
func (r Responses) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of entries.
func (r Responses) Len() int { return len(r.keys) }

// Map returns an order-less copy of the entries.
func (r Responses) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// MarshalJSON writes a JSON object with keys in stored order.
func (r Responses) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving its key order. Scalar values
// of any type are kept as their string form.
func (r *Responses) UnmarshalJSON(data []byte) error {
	*r = Responses{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("responses: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("responses: non-string key %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		r.set(key, scalarString(valTok))
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func scalarString(tok json.Token) string {
	switch v := tok.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
