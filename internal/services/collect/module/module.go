// Package module wires the collect service, its store binder, and the GitHub
// REST adapter
package module

import (
	"ghcollector/internal/adapters/github"
	"ghcollector/internal/modkit"
	"ghcollector/internal/services/collect/domain"
	"ghcollector/internal/services/collect/repo"
	"ghcollector/internal/services/collect/service"
)

// Ports defines the collect module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the collect module
type Module struct {
	deps   modkit.Deps
	ports  Ports
	client *github.Client
}

// New constructs the collect module using config from deps.Cfg
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	client, err := github.NewClient(github.Options{
		UserAgent: opts.UserAgent,
		Tokens:    opts.Tokens,
		CacheDir:  opts.CacheDir,
		CacheTTL:  opts.CacheTTL,
	})
	if err != nil {
		panic(err)
	}

	svc := service.New(
		deps.PG, repo.NewPG(),
		client, client, client,
		service.Config{
			StatePath:     opts.StatePath,
			WindowDays:    opts.WindowDays,
			PagePause:     opts.PagePause,
			OwnerWorkers:  opts.OwnerWorkers,
			ProgressEvery: opts.ProgressEvery,
		},
	)

	m := &Module{deps: deps, client: client}
	m.ports = Ports{Runner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "collect" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Client exposes the underlying REST client for metric logging at shutdown
func (m *Module) Client() *github.Client { return m.client }
