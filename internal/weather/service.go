package weather

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/i474232898/weather-tables/internal/metrics"
)

// Service wires the station client, the normalization pipeline and the
// checkpoint store together.
type Service struct {
	source      StationSource
	checkpoints Checkpointer
	metrics     *metrics.Collector
	logger      *slog.Logger
	normalize   NormalizeOptions
}

// NewService creates a new Service. checkpoints and m may be nil.
func NewService(source StationSource, checkpoints Checkpointer, m *metrics.Collector, logger *slog.Logger, opts NormalizeOptions) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Service{
		source:      source,
		checkpoints: checkpoints,
		metrics:     m,
		logger:      logger,
		normalize:   opts,
	}
}

// FetchStations runs one station query and normalizes the response.
func (s *Service) FetchStations(ctx context.Context, q StationQuery) (*StationTable, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: no station source configured", ErrConfiguration)
	}

	timer := metrics.NewTimer()
	resp, err := s.source.FetchStationData(ctx, q)
	if err != nil {
		s.metrics.ObserveStationRequest("error", timer.Elapsed())
		s.metrics.RecordPipelineError("fetch", Kind(err))
		return nil, fmt.Errorf("fetch station data: %w", err)
	}
	s.metrics.ObserveStationRequest("ok", timer.Elapsed())

	table, err := NormalizeStationData(resp, s.normalize)
	if err != nil {
		s.metrics.RecordPipelineError("normalize", Kind(err))
		return nil, fmt.Errorf("normalize station data: %w", err)
	}
	s.metrics.RecordRows("normalized", table.Len())
	return table, nil
}

// StationTable fetches, normalizes and reorganizes station data for q.
func (s *Service) StationTable(ctx context.Context, q StationQuery) (*ReorganizedTable, error) {
	table, err := s.FetchStations(ctx, q)
	if err != nil {
		return nil, err
	}

	out, err := ReorganizeStationData(table)
	if err != nil {
		s.metrics.RecordPipelineError("reorganize", Kind(err))
		return nil, fmt.Errorf("reorganize station data: %w", err)
	}
	s.metrics.RecordRows("reorganized", out.Len())

	s.logger.Info("station table built",
		"stations", len(q.Stations),
		"rows", out.Len(),
		"variables", len(out.Variables),
	)
	return out, nil
}

// NormalizeGrid flattens a grid result. The service logger is used for
// skipped series unless opts carries its own.
func (s *Service) NormalizeGrid(g *GridResult, opts GridOptions) (*GridTable, error) {
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	table, err := NormalizeGridResult(g, opts)
	if err != nil {
		s.metrics.RecordPipelineError("grid", Kind(err))
		return nil, err
	}
	s.metrics.RecordRows("grid", table.Len())
	return table, nil
}

// Checkpoint stores v under filename.
func (s *Service) Checkpoint(ctx context.Context, filename string, v any) error {
	if s.checkpoints == nil {
		return fmt.Errorf("%w: no checkpoint store configured", ErrStorage)
	}
	if err := s.checkpoints.Save(ctx, filename, v); err != nil {
		return fmt.Errorf("checkpoint %s: %w", filename, err)
	}
	s.logger.Info("checkpoint saved", "filename", filename)
	return nil
}

// CheckpointStations builds the reorganized table for q and stores it.
func (s *Service) CheckpointStations(ctx context.Context, filename string, q StationQuery) (*ReorganizedTable, error) {
	table, err := s.StationTable(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := s.Checkpoint(ctx, filename, table); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadStationTable loads a reorganized table saved by CheckpointStations.
func (s *Service) LoadStationTable(ctx context.Context, filename string) (*ReorganizedTable, error) {
	if s.checkpoints == nil {
		return nil, fmt.Errorf("%w: no checkpoint store configured", ErrStorage)
	}
	var table ReorganizedTable
	if err := s.checkpoints.Load(ctx, filename, &table); err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", filename, err)
	}
	return &table, nil
}
