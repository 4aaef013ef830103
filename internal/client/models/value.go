package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Condition grades the physical state of an item.
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	ConditionDamaged   Condition = "damaged"
)

func (c Condition) Valid() bool {
	switch c {
	case "", ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return true
	}
	return false
}

// Cleanliness grades how clean an item is.
type Cleanliness string

const (
	CleanlinessExcellent  Cleanliness = "excellent"
	CleanlinessClean      Cleanliness = "clean"
	CleanlinessAcceptable Cleanliness = "acceptable"
	CleanlinessDirty      Cleanliness = "dirty"
)

func (c Cleanliness) Valid() bool {
	switch c {
	case "", CleanlinessExcellent, CleanlinessClean, CleanlinessAcceptable, CleanlinessDirty:
		return true
	}
	return false
}

// FieldValue is the answer recorded for a template field. It is one of
// Text, Boolean or Rated; a nil FieldValue means the field is unanswered.
type FieldValue interface {
	fieldValue()
}

// Text is a free-text answer.
type Text string

// Boolean is a yes/no answer.
type Boolean bool

// Rated is a value graded by condition and cleanliness.
type Rated struct {
	Value       string      `json:"value,omitempty"`
	Condition   Condition   `json:"condition,omitempty"`
	Cleanliness Cleanliness `json:"cleanliness,omitempty"`
}

func (Text) fieldValue()    {}
func (Boolean) fieldValue() {}
func (Rated) fieldValue()   {}

// EncodeValue renders v in its wire form: a JSON string, a JSON boolean, an
// object for Rated, or null when v is nil.
func EncodeValue(v FieldValue) (json.RawMessage, error) {
	switch x := v.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case Text:
		return json.Marshal(string(x))
	case Boolean:
		return json.Marshal(bool(x))
	case Rated:
		return json.Marshal(x)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", common.ErrInvalidValue, v)
	}
}

// DecodeValue parses the wire form produced by EncodeValue. Numbers are
// accepted as text so that numeric answers survive a round trip.
func DecodeValue(raw []byte) (FieldValue, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidValue, err)
		}
		return Text(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidValue, err)
		}
		return Boolean(b), nil
	case '{':
		var r Rated
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidValue, err)
		}
		if !r.Condition.Valid() {
			return nil, fmt.Errorf("%w: unknown condition %q", common.ErrInvalidValue, r.Condition)
		}
		if !r.Cleanliness.Valid() {
			return nil, fmt.Errorf("%w: unknown cleanliness %q", common.ErrInvalidValue, r.Cleanliness)
		}
		return r, nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: %s", common.ErrInvalidValue, raw)
		}
		return Text(n.String()), nil
	}
}
