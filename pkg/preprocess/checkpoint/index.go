package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// blobIndex is the in-memory form of the index document: blob name to
// ordered member keys. Entry order follows the document, so scans are
// deterministic and the persisted file lists blobs in creation order.
type blobIndex struct {
	names   []string
	members map[string][]string
}

func newBlobIndex() *blobIndex {
	return &blobIndex{members: make(map[string][]string)}
}

// add appends an entry, replacing the member list if the name already exists.
func (ix *blobIndex) add(name string, keys []string) {
	if _, exists := ix.members[name]; !exists {
		ix.names = append(ix.names, name)
	}
	ix.members[name] = keys
}

// find returns the name of the blob whose member list contains key. When
// duplicate memberships exist (correct use never produces them) the last
// entry in document order wins.
func (ix *blobIndex) find(key string) (string, bool) {
	var found string
	var ok bool
	for _, name := range ix.names {
		if slices.Contains(ix.members[name], key) {
			found, ok = name, true
		}
	}
	return found, ok
}

// snapshot returns a copy of the index as a plain mapping.
func (ix *blobIndex) snapshot() map[string][]string {
	out := make(map[string][]string, len(ix.names))
	for name, keys := range ix.members {
		out[name] = slices.Clone(keys)
	}
	return out
}

// MarshalJSON encodes the index as a JSON object with entries in document order.
func (ix *blobIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range ix.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		nameJSON, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		keysJSON, err := json.Marshal(ix.members[name])
		if err != nil {
			return nil, err
		}
		buf.Write(nameJSON)
		buf.WriteByte(':')
		buf.Write(keysJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into the index, preserving entry order.
func (ix *blobIndex) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("index document must be a JSON object")
	}

	ix.names = nil
	ix.members = make(map[string][]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("index entry name must be a string")
		}
		var keys []string
		if err := dec.Decode(&keys); err != nil {
			return err
		}
		ix.add(name, keys)
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
