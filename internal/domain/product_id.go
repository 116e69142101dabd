package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductID is an opaque product identifier. Clients send it either as a
// JSON string or a JSON number; both decode to the same canonical string so
// 3 and "3" name the same product.
type ProductID string

// String returns the canonical form.
func (p ProductID) String() string {
	return string(p)
}

// MarshalJSON always encodes as a JSON string.
func (p ProductID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// UnmarshalJSON accepts a JSON string or number.
func (p *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ProductID(s)
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("productId must be a string or number: %w", err)
	}
	*p = ProductID(n.String())
	return nil
}
