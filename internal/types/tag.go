package types

import (
	"github.com/go-playground/validator/v10"
)

// TagRecord is one label for an address from one source.
// Several records may share an address, typically one per source.
type TagRecord struct {
	Address Address `json:"address" yaml:"address" validate:"required,len=42,startswith=0x,hexadecimal"`
	Name    string  `json:"name" yaml:"name" validate:"required,max=200"`
	Entity  string  `json:"entity,omitempty" yaml:"entity,omitempty" validate:"max=200"`
	Source  string  `json:"source" yaml:"source" validate:"required,max=64"`
}

// ResolvedTag is the single label chosen for an address.
type ResolvedTag struct {
	Name   string `json:"name"`
	Entity string `json:"entity,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints on the record.
func (r TagRecord) Validate() error {
	return validate.Struct(r)
}
