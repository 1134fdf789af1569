package store

import (
	"basegraph.app/ingest/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) IngestionEvents() IngestionEventStore {
	return newIngestionEventStore(s.queries)
}
