package tracking

import "context"

// Extractor drives a browser session against the source site.
type Extractor interface {
	// LookupContainer submits a container id and parses the rendered page.
	LookupContainer(ctx context.Context, id string) (ContainerStatus, error)
	// LookupContract submits a contract number and intercepts the backend
	// response. A nil payload with a nil error means the source reported
	// no data for the number.
	LookupContract(ctx context.Context, number string) (*ContractPayload, error)
}

// Geocoder resolves a free-text place name to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, place, country string) (Coords, bool, error)
}
