package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AuditBlob is a JSON object that keeps its keys in insertion order, so the
// provider's response can be stored verbatim and extended by later callbacks.
type AuditBlob struct {
	keys   []string
	values map[string]json.RawMessage
}

// ParseAudit decodes raw as a JSON object. Anything else is kept under "raw".
func ParseAudit(raw []byte) *AuditBlob {
	a := &AuditBlob{values: map[string]json.RawMessage{}}
	if len(bytes.TrimSpace(raw)) == 0 {
		return a
	}
	if err := a.decode(raw); err != nil {
		a.keys, a.values = nil, map[string]json.RawMessage{}
		a.Set("raw", string(raw))
	}
	return a
}

func (a *AuditBlob) decode(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("audit blob is not an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return err
		}
		a.put(key, v)
	}
	_, err = dec.Token()
	return err
}

func (a *AuditBlob) put(key string, v json.RawMessage) {
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = v
}

// Set stores v under key, keeping the key's original position if present.
func (a *AuditBlob) Set(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(fmt.Sprint(v))
	}
	a.put(key, raw)
}

// String returns the value under key when it is a JSON string.
func (a *AuditBlob) String(key string) string {
	var s string
	if raw, ok := a.values[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

func (a *AuditBlob) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

func (a *AuditBlob) Keys() []string {
	return append([]string(nil), a.keys...)
}

func (a *AuditBlob) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(a.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
