package mapper

import (
	"basegraph.app/ingest/core/config"
	"basegraph.app/ingest/internal/model"
)

// Registry resolves a platform identifier to its mapper. It is built once at
// startup and only read afterwards.
type Registry struct {
	mappers map[model.Platform]EventMapper
}

func NewRegistry(mappers ...EventMapper) *Registry {
	r := &Registry{mappers: make(map[model.Platform]EventMapper, len(mappers))}
	for _, m := range mappers {
		r.mappers[m.Platform()] = m
	}
	return r
}

// NewRegistryFromConfig wires the four supported platforms.
func NewRegistryFromConfig(cfg config.WebhookConfig) *Registry {
	return NewRegistry(
		NewGitHubEventMapper(cfg.GitHubSecret),
		NewGitLabEventMapper(cfg.GitLabSecret),
		NewSlackEventMapper(cfg.SlackSigningSecret, cfg.SlackTolerance),
		NewJiraEventMapper(cfg.JiraSecret, cfg.JiraBaseURL),
	)
}

func (r *Registry) Lookup(platform string) (EventMapper, bool) {
	m, ok := r.mappers[model.Platform(platform)]
	return m, ok
}

// Platforms returns the registered platforms in display order.
func (r *Registry) Platforms() []model.Platform {
	out := make([]model.Platform, 0, len(r.mappers))
	for _, p := range model.Platforms {
		if _, ok := r.mappers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
