package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// EvaluationType is the declared value type of an evaluation definition.
type EvaluationType string

const (
	EvaluationBoolean EvaluationType = "boolean"
	EvaluationNumber  EvaluationType = "number"
	EvaluationString  EvaluationType = "string"
)

// ParseEvaluationType maps the API's type names onto EvaluationType.
// The API reports free-text evaluations as "text".
func ParseEvaluationType(s string) (EvaluationType, error) {
	switch s {
	case "boolean", "bool":
		return EvaluationBoolean, nil
	case "number", "numeric", "rating":
		return EvaluationNumber, nil
	case "string", "text":
		return EvaluationString, nil
	default:
		return "", fmt.Errorf("unknown evaluation type %q", s)
	}
}

// EvaluationDefinition is a named, typed criterion scored against transcripts.
// Definitions are reference data for the duration of a cycle.
type EvaluationDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        EvaluationType `json:"type"`
	Enabled     bool           `json:"enabled"`
	Default     bool           `json:"default,omitempty"`
}

// EvaluationResult is the scored value of one definition for one transcript.
// EvaluationID may be empty when the API only reports the definition name.
type EvaluationResult struct {
	TranscriptID string    `json:"transcript_id"`
	EvaluationID string    `json:"evaluation_id,omitempty"`
	Name         string    `json:"name,omitempty"`
	Value        Value     `json:"value"`
	Cost         float64   `json:"cost,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// Value is a tagged scalar carrying an evaluation result. It marshals as the
// bare JSON value.
type Value struct {
	Kind   EvaluationType
	Bool   bool
	Number float64
	Text   string
}

func BoolValue(b bool) Value      { return Value{Kind: EvaluationBoolean, Bool: b} }
func NumberValue(f float64) Value { return Value{Kind: EvaluationNumber, Number: f} }
func StringValue(s string) Value  { return Value{Kind: EvaluationString, Text: s} }

// IsZero reports whether the value is unset.
func (v Value) IsZero() bool {
	return v.Kind == ""
}

func (v Value) raw() any {
	switch v.Kind {
	case EvaluationBoolean:
		return v.Bool
	case EvaluationNumber:
		return v.Number
	case EvaluationString:
		return v.Text
	default:
		return nil
	}
}

// String renders the value for tables and logs.
func (v Value) String() string {
	switch v.Kind {
	case EvaluationBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case EvaluationNumber:
		return fmt.Sprintf("%g", v.Number)
	default:
		return v.Text
	}
}

// Coerce converts the value to the declared type, accepting weak forms such
// as "true", "1" or "4.5". It fails when no sensible conversion exists.
func (v Value) Coerce(t EvaluationType) (Value, error) {
	if v.Kind == t && t == EvaluationNumber && !isFinite(v.Number) {
		return Value{}, fmt.Errorf("coerce %v to number: not a finite number", v.Number)
	}
	if v.Kind == t {
		return v, nil
	}
	if v.IsZero() {
		return Value{}, fmt.Errorf("missing value for %s evaluation", t)
	}
	switch t {
	case EvaluationBoolean:
		var b bool
		if err := mapstructure.WeakDecode(v.raw(), &b); err != nil {
			return Value{}, fmt.Errorf("coerce %q to boolean: %w", v.String(), err)
		}
		return BoolValue(b), nil
	case EvaluationNumber:
		var f float64
		if err := mapstructure.WeakDecode(v.raw(), &f); err != nil {
			return Value{}, fmt.Errorf("coerce %q to number: %w", v.String(), err)
		}
		if !isFinite(f) {
			return Value{}, fmt.Errorf("coerce %q to number: not a finite number", v.String())
		}
		return NumberValue(f), nil
	case EvaluationString:
		return StringValue(v.String()), nil
	default:
		return Value{}, fmt.Errorf("unknown evaluation type %q", t)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf builds a Value from a decoded JSON scalar. null yields the zero Value.
func ValueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return BoolValue(x), nil
	case float64:
		return NumberValue(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case string:
		return StringValue(x), nil
	default:
		return Value{}, fmt.Errorf("unsupported evaluation value of type %T", raw)
	}
}
