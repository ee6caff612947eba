package importer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-globe/engine/converter"
	"github.com/Carmen-Shannon/oxy-globe/engine/fetcher"
	"github.com/Carmen-Shannon/oxy-globe/engine/loader"
	"github.com/Carmen-Shannon/oxy-globe/engine/raster"
	"github.com/Carmen-Shannon/oxy-globe/engine/scene"
)

// Sentinels of the import error taxonomy. Every *ImportError matches exactly one of them with errors.Is.
var (
	ErrFetch               = fetcher.ErrFetch
	ErrUnsupportedFormat   = loader.ErrUnsupportedFormat
	ErrDecode              = loader.ErrDecode
	ErrMissingGeoreference = errors.New("raster has no georeference")
	ErrConversion          = converter.ErrConversion
	ErrCompose             = scene.ErrCompose
	ErrBusy                = errors.New("import already in progress")
)

// ErrorKind classifies why an import failed.
type ErrorKind int

const (
	ErrorFetch ErrorKind = iota
	ErrorUnsupportedFormat
	ErrorDecode
	ErrorMissingGeoreference
	ErrorConversion
	ErrorCompose
	ErrorBusy
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorFetch:
		return "FetchError"
	case ErrorUnsupportedFormat:
		return "UnsupportedFormat"
	case ErrorDecode:
		return "DecodeError"
	case ErrorMissingGeoreference:
		return "MissingGeoreference"
	case ErrorConversion:
		return "ConversionError"
	case ErrorCompose:
		return "ComposeError"
	case ErrorBusy:
		return "Busy"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// sentinel returns the package error matching k.
func (k ErrorKind) sentinel() error {
	switch k {
	case ErrorFetch:
		return ErrFetch
	case ErrorUnsupportedFormat:
		return ErrUnsupportedFormat
	case ErrorDecode:
		return ErrDecode
	case ErrorMissingGeoreference:
		return ErrMissingGeoreference
	case ErrorConversion:
		return ErrConversion
	case ErrorCompose:
		return ErrCompose
	case ErrorBusy:
		return ErrBusy
	default:
		return nil
	}
}

// ImportError reports a failed or rejected import.
type ImportError struct {
	// Kind is the failure class.
	Kind ErrorKind
	// Stage is the state the coordinator was in when the failure occurred.
	Stage State
	// Resource is the name of the resource being imported.
	Resource string
	// Err is the underlying cause.
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %q: %s during %s: %v", e.Resource, e.Kind, e.Stage, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, even when Err does not wrap it.
func (e *ImportError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// classify maps a stage failure to its error kind. Causes carrying a known sentinel keep it; anything
// else is attributed to the stage it happened in.
func classify(stage State, err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMissingGeoreference):
		return ErrorMissingGeoreference
	case errors.Is(err, ErrFetch):
		return ErrorFetch
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrorUnsupportedFormat
	case errors.Is(err, ErrDecode):
		return ErrorDecode
	case errors.Is(err, ErrConversion), errors.Is(err, raster.ErrExtract):
		return ErrorConversion
	case errors.Is(err, ErrCompose):
		return ErrorCompose
	}

	switch stage {
	case StateFetching:
		return ErrorFetch
	case StateDecoding:
		return ErrorDecode
	case StateTransforming:
		return ErrorConversion
	default:
		return ErrorCompose
	}
}

// newImportError wraps err as an *ImportError classified by stage.
func newImportError(stage State, resource string, err error) *ImportError {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie
	}
	return &ImportError{Kind: classify(stage, err), Stage: stage, Resource: resource, Err: err}
}
