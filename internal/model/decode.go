package model

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeRawRecord reads one JSON object from r into a RawRecord, keeping the
// vendor's key order. Numbers are kept as json.Number so long identifiers
// and phone numbers survive without float rounding.
func DecodeRawRecord(r io.Reader) (*RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "model: decode raw record")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, eris.Errorf("model: decode raw record: expected object, got %v", tok)
	}

	rec := NewRawRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "model: decode raw record key")
		}
		key, _ := tok.(string)

		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, eris.Wrapf(err, "model: decode raw record field %q", key)
		}
		rec.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "model: decode raw record")
	}
	return rec, nil
}
