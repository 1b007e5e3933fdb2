// Package idl implements the IDL data model: one peer's advertised grammar
// plus routing metadata, and its JSON envelope (spec §3, §6).
package idl

import (
	"encoding/json"
	"fmt"

	"github.com/mistwave/unicornsh/internal/grammar"
)

// IDL is one peer's advertised grammar and routing metadata.
type IDL struct {
	Topic         string
	Completion    grammar.Node
	Flat          bool
	Stdout        *string
	Stderr        *string
	Result        *string
	AdHocChannels bool
	Logging       *string
}

// wireEnvelope mirrors the JSON shape described in spec §6: every field but
// completion is optional.
type wireEnvelope struct {
	Completion    json.RawMessage `json:"completion"`
	Flat          bool            `json:"flat,omitempty"`
	Stdout        *string         `json:"stdout,omitempty"`
	Stderr        *string         `json:"stderr,omitempty"`
	Result        *string         `json:"result,omitempty"`
	AdHocChannels bool            `json:"adHocChannels,omitempty"`
	Logging       *string         `json:"logging,omitempty"`
}

// FromJSON decodes an IDL announcement payload for the given topic. log
// receives the one diagnostic line ResolveReferences may emit; it is
// accepted here, rather than called globally, so callers can route it
// however they log everything else. validate controls whether the decoded
// shape is schema-checked before nodes are built; callers loading from a
// trusted cache may skip it for speed (spec §4.8).
func FromJSON(topic string, payload []byte, validate bool, log grammar.Logger) (IDL, error) {
	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return IDL{}, fmt.Errorf("decode idl envelope: %w", err)
	}
	if env.Completion == nil {
		return IDL{}, fmt.Errorf("idl envelope missing required field %q", "completion")
	}

	if validate {
		if err := validateSchema(payload); err != nil {
			return IDL{}, err
		}
	}

	root, err := grammar.NodeFromJSON(env.Completion)
	if err != nil {
		return IDL{}, fmt.Errorf("decode completion tree: %w", err)
	}
	grammar.ResolveReferences(root, log)

	return IDL{
		Topic:         topic,
		Completion:    root,
		Flat:          env.Flat,
		Stdout:        env.Stdout,
		Stderr:        env.Stderr,
		Result:        env.Result,
		AdHocChannels: env.AdHocChannels,
		Logging:       env.Logging,
	}, nil
}

// ToJSON serializes the IDL back to the wire envelope shape, used both for
// the cache file (spec §4.8) and for tests asserting round-trip equality
// (spec §8 property 2).
func (l IDL) ToJSON() ([]byte, error) {
	dict := map[string]interface{}{
		"completion": grammar.ToDict(l.Completion),
	}
	if l.Flat {
		dict["flat"] = l.Flat
	}
	if l.Stdout != nil {
		dict["stdout"] = *l.Stdout
	}
	if l.Stderr != nil {
		dict["stderr"] = *l.Stderr
	}
	if l.Result != nil {
		dict["result"] = *l.Result
	}
	if l.AdHocChannels {
		dict["adHocChannels"] = l.AdHocChannels
	}
	if l.Logging != nil {
		dict["logging"] = *l.Logging
	}
	return json.Marshal(dict)
}

// validateSchema performs the narrow structural checks spec §6's node
// envelope schema requires: every node object must carry a "type" in the
// closed set, and a handful of per-type required fields. This stands in for
// the Python implementation's optional jsonschema dependency (schema
// validation "may be skipped"; the pack carries no JSON Schema library, so
// this hand-rolled check is the minimal faithful substitute — see
// DESIGN.md).
func validateSchema(payload []byte) error {
	var probe struct {
		Completion json.RawMessage `json:"completion"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return grammar.ValidateEnvelope(probe.Completion)
}
