package service

import (
	"basegraph.app/ingest/internal/inference"
	"basegraph.app/ingest/internal/mapper"
	"basegraph.app/ingest/internal/queue"
	"basegraph.app/ingest/internal/store"
)

type Services struct {
	stores     *store.Stores
	registry   *mapper.Registry
	producer   queue.Producer
	dispatcher Dispatcher
	inference  inference.Client
	ingestCfg  IngestConfig
}

func NewServices(
	stores *store.Stores,
	registry *mapper.Registry,
	producer queue.Producer,
	dispatcher Dispatcher,
	client inference.Client,
	ingestCfg IngestConfig,
) *Services {
	return &Services{
		stores:     stores,
		registry:   registry,
		producer:   producer,
		dispatcher: dispatcher,
		inference:  client,
		ingestCfg:  ingestCfg,
	}
}

func (s *Services) DecisionRunner() *DecisionRunner {
	return NewDecisionRunner(s.stores.IngestionEvents(), s.inference)
}

func (s *Services) Ingest() IngestService {
	return NewIngestService(
		s.registry,
		s.stores.IngestionEvents(),
		s.producer,
		s.dispatcher,
		s.DecisionRunner(),
		s.ingestCfg,
	)
}

func (s *Services) Events() EventQueryService {
	return NewEventQueryService(s.stores.IngestionEvents())
}
