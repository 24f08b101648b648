package analysis

import (
	"context"
	"encoding/json"
)

// Relayer forwards an envelope upstream and returns the raw response body.
type Relayer interface {
	Generate(ctx context.Context, env Envelope) (json.RawMessage, error)
}

// Extractor turns a report image into a structured Result.
type Extractor interface {
	Extract(ctx context.Context, img ImageRequest) (*Result, error)
}
