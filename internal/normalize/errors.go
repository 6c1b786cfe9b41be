package normalize

import (
	"errors"
	"fmt"

	"github.com/rickgao/market-ingest/internal/model"
)

// Errors
var (
	ErrMissingField     = errors.New("missing mandatory field")
	ErrNegativePrice    = errors.New("negative price")
	ErrUnsupportedInput = errors.New("unsupported raw tick type")
)

// NormalizationError reports a frame that parsed structurally but could not
// be mapped onto a Tick. Callers discard the frame.
type NormalizationError struct {
	Source model.Source
	Field  string
	Err    error
}

func (e *NormalizationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("normalize %s tick: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("normalize %s tick: field %q: %v", e.Source, e.Field, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }
