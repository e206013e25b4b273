package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
	"github.com/RosendoLopez2014/PromptPilot/internal/assistant"
	"github.com/RosendoLopez2014/PromptPilot/internal/automation"
	"github.com/RosendoLopez2014/PromptPilot/internal/config"
	"github.com/RosendoLopez2014/PromptPilot/internal/executor"
	"github.com/RosendoLopez2014/PromptPilot/internal/llmclient"
	"github.com/RosendoLopez2014/PromptPilot/internal/planner"
	"github.com/RosendoLopez2014/PromptPilot/internal/resolver"
	"github.com/RosendoLopez2014/PromptPilot/internal/screen"
)

// capabilities carries the optional platform collaborators. The input driver
// and screen reader are OS-level integrations injected at the boundary; a nil
// entry degrades the matching feature instead of failing startup.
type capabilities struct {
	driver     automation.InputDriver
	reader     schemas.ScreenReader
	recognizer schemas.SpeechRecognizer
}

// buildAssistant wires the full pipeline from configuration.
func buildAssistant(cfg *config.Config, caps capabilities, logger *zap.Logger) (*assistant.Assistant, error) {
	client, err := llmclient.NewClient(cfg.Backend, logger)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	analyzer := screen.NewAnalyzer(caps.reader, cfg.Screen, logger)
	if !analyzer.Available() {
		logger.Warn("No screen reader wired; vision intents are disabled")
	}
	if caps.driver == nil {
		logger.Warn("No input driver wired; keyboard and mouse steps are no-ops")
	}

	automator := automation.NewDesktopAutomator(caps.driver, caps.reader, cfg.Executor, logger)
	res := resolver.NewResolver(cfg.Resolver, cfg.Screen, analyzer, logger)
	plan := planner.NewPlanner(client, cfg.Backend, cfg.Screen, logger)
	exec := executor.NewExecutor(automator, analyzer, cfg.Executor, cfg.Screen, logger)

	return assistant.New(res, plan, exec, analyzer, logger), nil
}
