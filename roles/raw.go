package roles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the shape a role value arrived in.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindObject:
		return "object"
	default:
		return "none"
	}
}

// Raw is a role as delivered upstream: absent, a plain string, or an
// object carrying an id and/or a name. The zero value is an absent role.
type Raw struct {
	kind  Kind
	value string
	id    string
	name  string
}

// None returns an absent role.
func None() Raw { return Raw{} }

// String returns a plain string role.
func String(s string) Raw { return Raw{kind: KindString, value: s} }

// Object returns an object role.
func Object(id, name string) Raw { return Raw{kind: KindObject, id: id, name: name} }

// Kind returns the shape of the role.
func (r Raw) Kind() Kind { return r.kind }

// IsZero reports whether the role is absent.
func (r Raw) IsZero() bool { return r.kind == KindNone }

// Value returns the plain string for string roles.
func (r Raw) Value() string { return r.value }

// ID returns the id field of an object role.
func (r Raw) ID() string { return r.id }

// Name returns the name field of an object role.
func (r Raw) Name() string { return r.name }

// Key is shorthand for Normalize(r).
func (r Raw) Key() string { return Normalize(r) }

func (r Raw) String() string {
	switch r.kind {
	case KindString:
		return r.value
	case KindObject:
		return fmt.Sprintf("{id:%q name:%q}", r.id, r.name)
	default:
		return "<none>"
	}
}

type rawObject struct {
	ID   json.RawMessage `json:"id,omitempty"`
	Name string          `json:"name,omitempty"`
}

// UnmarshalJSON accepts null, a string, or an object with id/name fields.
// Numeric ids are kept in their decimal form.
func (r *Raw) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Raw{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode role string: %w", err)
		}
		*r = String(s)
		return nil
	case '{':
		var obj rawObject
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decode role object: %w", err)
		}
		id, err := decodeID(obj.ID)
		if err != nil {
			return err
		}
		*r = Object(id, obj.Name)
		return nil
	default:
		return fmt.Errorf("unsupported role value %s", data)
	}
}

// MarshalJSON writes the role back in the shape it arrived in.
func (r Raw) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case KindString:
		return json.Marshal(r.value)
	case KindObject:
		return json.Marshal(struct {
			ID   string `json:"id,omitempty"`
			Name string `json:"name,omitempty"`
		}{ID: r.id, Name: r.name})
	default:
		return []byte("null"), nil
	}
}

func decodeID(msg json.RawMessage) (string, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return "", nil
	}
	if msg[0] == '"' {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return "", fmt.Errorf("decode role id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err != nil {
		return "", fmt.Errorf("decode role id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
