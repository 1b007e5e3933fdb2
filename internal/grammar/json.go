package grammar

import (
	"encoding/json"
	"fmt"
)

// envelope is the common shape every non-null node JSON value carries: a
// "type" discriminator plus whatever fields that type needs, read generically
// so each variant's FromJSON can pull out only what it needs.
type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Stmts   json.RawMessage `json:"stmts,omitempty"`
	Stmt    json.RawMessage `json:"stmt,omitempty"`
	End     json.RawMessage `json:"end,omitempty"`
	PeekEnd bool            `json:"peekEnd,omitempty"`
	Options *[]string       `json:"options,omitempty"`
	Integer bool            `json:"integer,omitempty"`
	Min     *float64        `json:"min,omitempty"`
	Max     *float64        `json:"max,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

// NodeFromJSON decodes one node, and recursively its children, from the JSON
// envelope shape in spec §6. A JSON null decodes to Empty{}, matching the
// source's NodeFromJSON(None) -> Empty() behavior.
func NodeFromJSON(raw json.RawMessage) (Node, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Empty{}, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("node envelope: %w", err)
	}

	switch env.Type {
	case "keyword":
		var rawStmts map[string]json.RawMessage
		if len(env.Stmts) > 0 {
			if err := json.Unmarshal(env.Stmts, &rawStmts); err != nil {
				return nil, fmt.Errorf("keyword stmts: %w", err)
			}
		}
		stmts := map[string]Node{}
		for kw, rawChild := range rawStmts {
			child, err := NodeFromJSON(rawChild)
			if err != nil {
				return nil, err
			}
			stmts[kw] = child
		}
		return NewKeyword(env.ID, stmts), nil

	case "sequence":
		var rawStmts []json.RawMessage
		if len(env.Stmts) > 0 {
			if err := json.Unmarshal(env.Stmts, &rawStmts); err != nil {
				return nil, fmt.Errorf("sequence stmts: %w", err)
			}
		}
		children := make([]Node, 0, len(rawStmts))
		for _, rawChild := range rawStmts {
			child, err := NodeFromJSON(rawChild)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return NewSequence(env.ID, children...), nil

	case "repeat":
		stmt, err := NodeFromJSON(env.Stmt)
		if err != nil {
			return nil, err
		}
		end, err := decodeEnd(env.End)
		if err != nil {
			return nil, err
		}
		return NewRepeat(env.ID, stmt, end, env.PeekEnd), nil

	case "string":
		var opts []string
		if env.Options != nil {
			opts = *env.Options
		}
		return NewString(env.ID, opts), nil

	case "number":
		return NewNumber(env.ID, env.Integer, env.Min, env.Max), nil

	case "reference":
		if env.Ref == "" {
			return nil, fmt.Errorf("reference node missing required field %q", "ref")
		}
		return NewReference(env.Ref), nil

	case "empty":
		return Empty{}, nil

	default:
		return nil, fmt.Errorf("unknown node type %q", env.Type)
	}
}

// decodeEnd accepts spec §6's "end?: string|[string…]" shape.
func decodeEnd(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var multi []string
	if err := json.Unmarshal(raw, &multi); err != nil {
		return nil, fmt.Errorf("repeat end: %w", err)
	}
	return multi, nil
}

// ValidateEnvelope performs the minimal structural check described in
// idl.validateSchema: every node (recursively) must either be JSON null or
// carry a "type" from the closed set, and each type's structurally required
// fields must be present and of the right shape.
func ValidateEnvelope(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("node envelope: %w", err)
	}

	switch env.Type {
	case "keyword":
		var rawStmts map[string]json.RawMessage
		if len(env.Stmts) > 0 {
			if err := json.Unmarshal(env.Stmts, &rawStmts); err != nil {
				return fmt.Errorf("keyword stmts: must be an object: %w", err)
			}
		}
		for _, child := range rawStmts {
			if err := ValidateEnvelope(child); err != nil {
				return err
			}
		}
	case "sequence":
		var rawStmts []json.RawMessage
		if len(env.Stmts) > 0 {
			if err := json.Unmarshal(env.Stmts, &rawStmts); err != nil {
				return fmt.Errorf("sequence stmts: must be an array: %w", err)
			}
		}
		for _, child := range rawStmts {
			if err := ValidateEnvelope(child); err != nil {
				return err
			}
		}
	case "repeat":
		if len(env.Stmt) == 0 {
			return fmt.Errorf("repeat node missing required field %q", "stmt")
		}
		if err := ValidateEnvelope(env.Stmt); err != nil {
			return err
		}
		if _, err := decodeEnd(env.End); err != nil {
			return err
		}
	case "string", "number":
		// no required sub-structure beyond what json.Unmarshal already
		// checked via the envelope's typed fields.
	case "reference":
		if env.Ref == "" {
			return fmt.Errorf("reference node missing required field %q", "ref")
		}
	case "empty":
	default:
		return fmt.Errorf("unknown node type %q", env.Type)
	}
	return nil
}
