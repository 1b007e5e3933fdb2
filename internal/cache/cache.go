// Package cache implements the opaque read/write of the known-IDL set to a
// cache file (spec §4.8). The file is a JSON object mapping topic to a
// two-element [topic, serialized-IDL-JSON-string] array; the serialized IDL
// comes from the IDL's own JSON encoder.
package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mistwave/unicornsh/internal/grammar"
	"github.com/mistwave/unicornsh/internal/idl"
	"github.com/mistwave/unicornsh/internal/shellerr"
)

// entry is the on-disk shape of one cache slot.
type entry [2]string // [topic, serialized-idl-json]

// Load reads the cache file at path and decodes every entry into an IDL, in
// the file's own on-disk key order, skipping schema validation for speed as
// spec §4.8 permits. Order matters here: the registry resolves colliding
// topics last-registered-wins (spec's Open Question Decision #1), so cache
// replay has to rebuild entries in a reproducible order rather than
// whatever order a Go map happens to iterate in on a given run. Invalid
// entries (malformed JSON, bad per-entry shape, or an IDL that fails to
// decode) are dropped individually rather than failing the whole load; if
// the file itself cannot be parsed as JSON at all, CacheCorruption is
// returned and the caller is expected to proceed with an empty registry
// (spec §7).
func Load(path string, log grammar.Logger) ([]idl.IDL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, shellerr.CacheCorruption(path, err)
	}

	topics, entries, err := decodeOrdered(data)
	if err != nil {
		return nil, shellerr.CacheCorruption(path, err)
	}

	var out []idl.IDL
	for i, topic := range topics {
		e := entries[i]
		l, err := idl.FromJSON(e[0], []byte(e[1]), false, log)
		if err != nil {
			if log != nil {
				log.Logf("dropping invalid cache entry for topic %q: %s", topic, err.Error())
			}
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// decodeOrdered decodes the cache file's top-level JSON object while
// preserving the order its keys appear on disk. encoding/json's usual
// map[string]entry unmarshal is sufficient for the data itself but
// discards key order (Go map iteration is randomized), so this walks the
// object through a token stream instead: read the opening brace, then
// alternate a string key token with a full value decode until the closing
// brace.
func decodeOrdered(data []byte) (topics []string, entries []entry, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("cache file: expected a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("cache file: expected a string key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue // bad per-entry shape: drop only this entry
		}

		topics = append(topics, key)
		entries = append(entries, e)
	}

	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, nil, err
	}

	return topics, entries, nil
}

// Save persists the full registry contents to path, overwriting any existing
// file. It is called after every rebuild when a cache path is configured
// (spec §4.4 "Cache").
func Save(path string, byTopic map[string]idl.IDL) error {
	raw := map[string]entry{}
	for topic, l := range byTopic {
		payload, err := l.ToJSON()
		if err != nil {
			return err
		}
		raw[topic] = entry{l.Topic, string(payload)}
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
