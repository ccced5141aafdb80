package entities

import "encoding/json"

// Opt is an optional field value. The zero Opt is absent; absent is the
// only "not provided" representation used by the sync payloads.
type Opt[T any] struct {
	Value T
	Valid bool
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Valid: true}
}

func None[T any]() Opt[T] {
	return Opt[T]{}
}

// Arg returns the value for a SQL parameter, nil when absent.
func (o Opt[T]) Arg() any {
	if !o.Valid {
		return nil
	}
	return o.Value
}

// Or returns the value, or def when absent.
func (o Opt[T]) Or(def T) T {
	if !o.Valid {
		return def
	}
	return o.Value
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// OptString treats the empty string as absent.
func OptString(s string) Opt[string] {
	if s == "" {
		return Opt[string]{}
	}
	return Some(s)
}
