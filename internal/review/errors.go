package review

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumn      = errors.New("missing required column")
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrInvalidLabel       = errors.New("invalid sentiment label")
	ErrInvalidSortMode    = errors.New("invalid sort mode")
)

// MissingColumnError names every required column absent from an input header.
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumn, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}
