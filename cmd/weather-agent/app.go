package main

import (
	"fmt"
	"io"

	"github.com/minhyannv/weather-agent-go/pkg/agent"
	configpkg "github.com/minhyannv/weather-agent-go/pkg/config"
	"github.com/minhyannv/weather-agent-go/pkg/conversation"
	"github.com/minhyannv/weather-agent-go/pkg/llm"
	loggerpkg "github.com/minhyannv/weather-agent-go/pkg/logger"
	"github.com/minhyannv/weather-agent-go/pkg/prompt"
	"github.com/minhyannv/weather-agent-go/pkg/tools"
	"github.com/minhyannv/weather-agent-go/pkg/weather"
)

// newLoop wires the weather client, tool registry, conversation state and
// model client into an agent loop.
func newLoop(cfg configpkg.Config, appLogger loggerpkg.Logger, transcript io.Writer) (*agent.Loop, error) {
	if appLogger == nil {
		appLogger = loggerpkg.NopLogger{}
	}

	catalog, err := tools.LoadCatalog()
	if err != nil {
		return nil, err
	}
	lookup := weather.New(weather.Options{
		APIKey:  cfg.WeatherAPIKey,
		BaseURL: cfg.WeatherBaseURL,
		Units:   string(cfg.WeatherUnits),
		Timeout: cfg.WeatherTimeout,
		Logger:  appLogger,
		Verbose: cfg.Verbose,
	})
	weatherTool, err := tools.NewWeatherTool(lookup, catalog)
	if err != nil {
		return nil, err
	}
	registry, err := tools.NewRegistry(weatherTool)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	state := conversation.New(prompt.BuildSystemPrompt(registry.Describe()))
	loggerpkg.Debug(cfg.Verbose, appLogger, "system prompt ready", map[string]any{
		"session": state.ID(),
		"bytes":   len(state.Instructions()),
		"tools":   len(registry.Describe()),
	})

	model := llm.New(llm.Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Logger:  appLogger,
		Verbose: cfg.Verbose,
	})

	loop, err := agent.New(model, registry, state,
		agent.WithLogger(appLogger),
		agent.WithVerbose(cfg.Verbose),
		agent.WithTranscript(transcript),
		agent.WithMaxTurns(cfg.MaxTurns),
		agent.WithMalformedRetries(cfg.MalformedRetries),
		agent.WithModelTimeout(cfg.ModelTimeout),
		agent.WithToolTimeout(cfg.WeatherTimeout),
	)
	if err != nil {
		return nil, err
	}
	loggerpkg.Info(appLogger, "agent ready", map[string]any{
		"session": state.ID(),
		"model":   cfg.Model,
	})
	return loop, nil
}
