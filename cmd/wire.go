// File: cmd/wire.go
// Description: Assembles the full pipeline from configuration. Shared by the
// chat and run commands so both drive an identical stack.
package cmd

import (
	"go.uber.org/zap"

	"github.com/Firstp1ck/android-agent/internal/agent"
	"github.com/Firstp1ck/android-agent/internal/automation"
	"github.com/Firstp1ck/android-agent/internal/config"
	"github.com/Firstp1ck/android-agent/internal/executor"
	"github.com/Firstp1ck/android-agent/internal/intent"
	"github.com/Firstp1ck/android-agent/internal/llmclient"
	"github.com/Firstp1ck/android-agent/internal/memory"
	"github.com/Firstp1ck/android-agent/internal/observability"
	"github.com/Firstp1ck/android-agent/internal/planner"
)

// pipeline bundles the orchestrator with the resources it owns.
type pipeline struct {
	orchestrator *agent.Orchestrator
	store        memory.Store
	logger       *zap.Logger
}

func (p *pipeline) close() {
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("Failed to close experience store", zap.Error(err))
		}
	}
	observability.Sync()
}

// buildPipeline wires parser, planner, executor, memory and the adb backend
// into an orchestrator.
func buildPipeline(cfg *config.Config) (*pipeline, error) {
	logger := observability.GetLogger()

	llm, err := llmclient.New(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	store, err := memory.New(cfg.Memory, logger)
	if err != nil {
		return nil, err
	}

	backend := automation.NewADBBackend(cfg.Automation, logger)
	apps := executor.NewAppCache(backend, cfg.Executor.AppCacheTTL, cfg.Executor.FuzzyMatchFloor, logger)
	exec := executor.New(cfg.Executor, backend, apps, logger)

	parser := intent.NewParser(logger, llm)
	pl := planner.New(logger, parser, llm)

	return &pipeline{
		orchestrator: agent.New(cfg.Agent, pl, exec, store, logger),
		store:        store,
		logger:       logger,
	}, nil
}
