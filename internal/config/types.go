// Package config loads and decodes rxh's TOML configuration file. Domain
// configuration — servers, patterns, backends — is decoded by hand
// against the generic TOML document tree rather than through a
// struct-tag-driven decoder, because the grammar's shorthand/union forms
// (a `forward` key that is a single address, a list of addresses, or a
// table naming an algorithm and a backend list) don't map onto a single
// Go struct shape. See decode.go for that pass; this file holds the
// normalized types every other package depends on.
package config

import "github.com/rxh-proxy/rxh/internal/sched"

// Config is the fully decoded, validated contents of rxh.toml.
type Config struct {
	Servers []ServerConfig `validate:"required,min=1,dive"`
}

// ServerConfig is one `[[server]]` table. A table with N `listen`
// addresses expands, at Master construction time, into N independent
// running servers that all share these patterns.
type ServerConfig struct {
	Listen      []string  `validate:"required,min=1,dive,required"`
	Name        string    `validate:"omitempty"`
	Connections int       `validate:"gt=0"`
	Patterns    []Pattern `validate:"required,min=1,dive"`
}

// Pattern pairs a URI prefix with the action taken for requests whose
// path has that prefix. Patterns are matched in declaration order; the
// first whose URI is a prefix of the request path wins.
type Pattern struct {
	URI    string `validate:"required"`
	Action Action `validate:"required"`
}

// Action is either a Forward or a Serve. It is a closed, two-member sum
// type implemented with an unexported marker method rather than an
// interface{}, so no type outside this package can be stored in it. A nil
// Action is still possible; Validate rejects it through Pattern's
// `required` tag.
type Action interface {
	isAction()
}

// Forward proxies matching requests to one of Backends, chosen by
// Algorithm.
type Forward struct {
	Backends  []Backend      `validate:"required,min=1,dive"`
	Algorithm sched.Algorithm `validate:"omitempty,oneof=wrr"`
}

func (Forward) isAction() {}

// Serve serves matching requests as static files rooted at Root.
type Serve struct {
	Root string `validate:"required"`
}

func (Serve) isAction() {}

// Backend is one forwarding target as written in the configuration file,
// before it is handed to sched.New.
type Backend struct {
	Address string `validate:"required"`
	Weight  int    `validate:"gte=1"`
}
