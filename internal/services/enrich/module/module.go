// Package module wires the enrichment engine, its store binder, and the
// GraphQL and REST adapters
package module

import (
	"ghcollector/internal/adapters/github"
	"ghcollector/internal/adapters/githubgql"
	"ghcollector/internal/modkit"
	"ghcollector/internal/services/enrich/domain"
	"ghcollector/internal/services/enrich/repo"
	"ghcollector/internal/services/enrich/service"
)

// Ports defines the enrich module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the enrich module
type Module struct {
	deps   modkit.Deps
	ports  Ports
	client *github.Client
}

// New constructs the enrich module using config from deps.Cfg
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	// the GraphQL batcher is single-credential; batches are checkpoint-ordered
	// so a pool buys nothing there. The REST client behind the contributor
	// probe still pools every configured token
	gql, err := githubgql.NewClient(githubgql.Options{
		Token:   opts.Tokens[0],
		Timeout: opts.Timeout,
	})
	if err != nil {
		panic(err)
	}

	var contributors domain.ContributorsPort
	var rest *github.Client
	if opts.Contributors {
		rest, err = github.NewClient(github.Options{
			UserAgent: opts.UserAgent,
			Tokens:    opts.Tokens,
			CacheDir:  opts.CacheDir,
		})
		if err != nil {
			panic(err)
		}
		contributors = rest
	}

	svc := service.New(
		deps.PG, repo.NewPG(),
		gql, contributors,
		service.Config{
			BatchSize:      opts.BatchSize,
			MaxAttempts:    opts.MaxAttempts,
			RetryBase:      opts.RetryBase,
			CheckpointPath: opts.CheckpointPath,
			FailedDir:      opts.FailedDir,
		},
	)

	m := &Module{deps: deps, client: rest}
	m.ports = Ports{Runner: svc}
	return m
}

// Name returns the module name
func (m *Module) Name() string { return "enrich" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Client exposes the REST client for metric logging; nil when the
// contributor probe is disabled
func (m *Module) Client() *github.Client { return m.client }
