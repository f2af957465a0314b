package weather

import "context"

// StationSource abstracts the weather service's station-data endpoint.
type StationSource interface {
	FetchStationData(ctx context.Context, q StationQuery) (StationResponse, error)
}

// Checkpointer persists arbitrary values under a filename and loads them back.
type Checkpointer interface {
	Save(ctx context.Context, filename string, v any) error
	Load(ctx context.Context, filename string, v any) error
}
