package config

import "fmt"

// DecodeError reports a malformed `[[server]]` table. Its Kind lets
// callers (and tests) match on the specific grammar violation without
// parsing the message.
type DecodeError struct {
	Kind  DecodeErrorKind
	Table string // which server/pattern table, for the message
	Err   error  // wrapped cause, for value-level errors (e.g. bad int)
}

// DecodeErrorKind enumerates the ways a `[[server]]`/`[[server.match]]`
// table can violate the grammar's mutual-exclusion rules.
type DecodeErrorKind int

const (
	// MixedSimpleAndMatch: a server declared both a `match` array and a
	// top-level shorthand `forward`/`serve`/`uri` key. Exactly one form
	// is allowed per table.
	MixedSimpleAndMatch DecodeErrorKind = iota
	// MixedActions: a table declared both `forward` and `serve`.
	MixedActions
	// MissingConfig: a table declared neither `forward` nor `serve`.
	MissingConfig
	// MissingListen: a `[[server]]` table had no `listen` key.
	MissingListen
	// InvalidValue: a key held a value of the wrong shape (e.g. `listen`
	// was a table, `weight` was a string).
	InvalidValue
)

func (e *DecodeError) Error() string {
	msg, ok := decodeErrorMessages[e.Kind]
	if !ok {
		msg = "invalid configuration"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Table, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Table, msg)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var decodeErrorMessages = map[DecodeErrorKind]string{
	MixedSimpleAndMatch: "cannot combine `match` with a top-level `forward`/`serve`/`uri`",
	MixedActions:        "cannot combine `forward` and `serve` in the same table",
	MissingConfig:        "must declare exactly one of `forward` or `serve`",
	MissingListen:        "must declare at least one `listen` address",
	InvalidValue:         "invalid value",
}
