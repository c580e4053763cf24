package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/rxh-proxy/rxh/internal/sched"
)

// DefaultConnections is the `connections` limit a `[[server]]` table gets
// when it doesn't declare one.
const DefaultConnections = 1024

type document struct {
	Server []map[string]any `toml:"server"`
}

// Decode parses a raw TOML document into a Config. It does not validate
// the result (empty names, non-positive weights, and so on) — call
// Validate afterward.
func Decode(data []byte) (Config, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if len(doc.Server) == 0 {
		return Config{}, fmt.Errorf("config: no [[server]] tables declared")
	}

	cfg := Config{Servers: make([]ServerConfig, 0, len(doc.Server))}
	for i, raw := range doc.Server {
		sc, err := decodeServer(raw, fmt.Sprintf("server[%d]", i))
		if err != nil {
			return Config{}, err
		}
		cfg.Servers = append(cfg.Servers, sc)
	}
	return cfg, nil
}

func decodeServer(raw map[string]any, table string) (ServerConfig, error) {
	listenVal, ok := raw["listen"]
	if !ok {
		return ServerConfig{}, &DecodeError{Kind: MissingListen, Table: table}
	}
	listen, err := oneOrManyStrings(listenVal)
	if err != nil {
		return ServerConfig{}, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("`listen`: %w", err)}
	}

	name, _ := raw["name"].(string)

	connections := DefaultConnections
	if v, ok := raw["connections"]; ok {
		n, err := asInt(v)
		if err != nil {
			return ServerConfig{}, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("`connections`: %w", err)}
		}
		connections = n
	}

	_, hasMatch := raw["match"]
	_, hasForward := raw["forward"]
	_, hasServe := raw["serve"]
	_, hasURI := raw["uri"]

	if hasMatch && (hasForward || hasServe || hasURI) {
		return ServerConfig{}, &DecodeError{Kind: MixedSimpleAndMatch, Table: table}
	}

	var patterns []Pattern
	if hasMatch {
		entries, ok := asTableArray(raw["match"])
		if !ok {
			return ServerConfig{}, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("`match` must be an array of tables")}
		}
		for j, entry := range entries {
			patternTable := fmt.Sprintf("%s.match[%d]", table, j)
			uri, _ := entry["uri"].(string)
			if uri == "" {
				uri = "/"
			}
			action, err := decodeAction(entry, patternTable)
			if err != nil {
				return ServerConfig{}, err
			}
			patterns = append(patterns, Pattern{URI: uri, Action: action})
		}
	} else {
		uri, _ := raw["uri"].(string)
		if uri == "" {
			uri = "/"
		}
		action, err := decodeAction(raw, table)
		if err != nil {
			return ServerConfig{}, err
		}
		patterns = append(patterns, Pattern{URI: uri, Action: action})
	}

	return ServerConfig{
		Listen:      listen,
		Name:        name,
		Connections: connections,
		Patterns:    patterns,
	}, nil
}

func decodeAction(m map[string]any, table string) (Action, error) {
	forwardVal, hasForward := m["forward"]
	serveVal, hasServe := m["serve"]

	switch {
	case hasForward && hasServe:
		return nil, &DecodeError{Kind: MixedActions, Table: table}
	case hasForward:
		return decodeForward(forwardVal, table)
	case hasServe:
		root, ok := serveVal.(string)
		if !ok {
			return nil, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("`serve` must be a string")}
		}
		return Serve{Root: root}, nil
	default:
		return nil, &DecodeError{Kind: MissingConfig, Table: table}
	}
}

// decodeForward handles the three shapes `forward` can take:
//
//	forward = "127.0.0.1:9000"
//	forward = ["127.0.0.1:9000", { address = "127.0.0.1:9001", weight = 3 }]
//	forward = { algorithm = "wrr", backends = [...] }
func decodeForward(v any, table string) (Action, error) {
	switch val := v.(type) {
	case string:
		return Forward{Backends: []Backend{{Address: val, Weight: 1}}}, nil
	case []any:
		backends, err := decodeBackendList(val, table)
		if err != nil {
			return nil, err
		}
		return Forward{Backends: backends}, nil
	case map[string]any:
		backendsVal, ok := val["backends"]
		if !ok {
			return nil, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("`forward` table must declare `backends`")}
		}
		arr, ok := backendsVal.([]any)
		if !ok {
			return nil, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("`backends` must be an array")}
		}
		backends, err := decodeBackendList(arr, table)
		if err != nil {
			return nil, err
		}
		algorithm, _ := val["algorithm"].(string)
		return Forward{Backends: backends, Algorithm: sched.Algorithm(algorithm)}, nil
	default:
		return nil, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("`forward` must be a string, array, or table")}
	}
}

func decodeBackendList(items []any, table string) ([]Backend, error) {
	backends := make([]Backend, 0, len(items))
	for _, item := range items {
		switch b := item.(type) {
		case string:
			backends = append(backends, Backend{Address: b, Weight: 1})
		case map[string]any:
			addr, ok := b["address"].(string)
			if !ok {
				return nil, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("backend entry missing `address`")}
			}
			weight := 1
			if wv, ok := b["weight"]; ok {
				w, err := asInt(wv)
				if err != nil {
					return nil, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("backend `weight`: %w", err)}
				}
				weight = w
			}
			backends = append(backends, Backend{Address: addr, Weight: weight})
		default:
			return nil, &DecodeError{Kind: InvalidValue, Table: table, Err: fmt.Errorf("backend entry must be a string or table")}
		}
	}
	return backends, nil
}

func oneOrManyStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("must be a string or an array of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a string or an array of strings")
	}
}

func asTableArray(v any) ([]map[string]any, bool) {
	switch t := v.(type) {
	case []map[string]any:
		return t, true
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case int64:
		return int(t), nil
	case int:
		return t, nil
	case float64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}
