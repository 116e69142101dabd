package coupon

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
)

// fileFormat is the on-disk layout of a coupon file:
//
//	coupons:
//	  - code: SAVE10
//	    discountPercent: 10
//	    label: 10% off
type fileFormat struct {
	Coupons []domain.Coupon `yaml:"coupons"`
}

// LoadFile reads a YAML coupon file and builds a registry from it.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coupon file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML builds a registry from YAML-encoded coupons. Unknown keys are
// rejected so typos in the file fail at startup.
func ParseYAML(data []byte) (*Registry, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse coupon file: %w", err)
	}
	if len(f.Coupons) == 0 {
		return nil, fmt.Errorf("parse coupon file: no coupons defined")
	}
	return NewRegistry(f.Coupons)
}
