package importer

import "fmt"

// Kind selects what an import produces.
type Kind int

const (
	// KindElevation imports a raster as an elevation model merged into the globe.
	KindElevation Kind = iota
	// KindImagery imports a raster as a surface image layer.
	KindImagery
)

func (k Kind) String() string {
	switch k {
	case KindElevation:
		return "elevation"
	case KindImagery:
		return "imagery"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// State is the coordinator's position in the import pipeline.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateDecoding
	StateTransforming
	StateComposing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDecoding:
		return "decoding"
	case StateTransforming:
		return "transforming"
	case StateComposing:
		return "composing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
