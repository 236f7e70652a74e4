package store

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DecodeRow maps a row onto a struct with json tags matching the column names.
// Time columns round-trip through RFC3339 strings.
func DecodeRow(row Row, dst any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return errors.Wrap(err, "encoding row")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, "decoding row")
	}
	return nil
}

// DecodeRows maps a result set onto a slice of structs.
func DecodeRows(rows []Row, dst any) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return errors.Wrap(err, "encoding rows")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, "decoding rows")
	}
	return nil
}
