package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minhyannv/weather-agent-go/pkg/weather"
)

// WeatherToolName is the name the model uses to request a weather lookup.
const WeatherToolName = "getWeatherDetails"

// WeatherLookup fetches current weather for a city.
type WeatherLookup interface {
	Fetch(ctx context.Context, city string) (weather.Result, error)
}

type weatherTool struct {
	spec   Spec
	lookup WeatherLookup
}

// NewWeatherTool wraps lookup as the getWeatherDetails tool documented in
// catalog.
func NewWeatherTool(lookup WeatherLookup, catalog Catalog) (Tool, error) {
	if lookup == nil {
		return nil, errors.New("weather lookup is required")
	}
	spec, ok := catalog.Lookup(WeatherToolName)
	if !ok {
		return nil, fmt.Errorf("tool catalog has no entry for %s", WeatherToolName)
	}
	return &weatherTool{spec: spec, lookup: lookup}, nil
}

func (t *weatherTool) Spec() Spec {
	return t.spec
}

func (t *weatherTool) Invoke(ctx context.Context, input string) (any, error) {
	city := strings.TrimSpace(input)
	if city == "" {
		return nil, errors.New("city is required")
	}
	result, err := t.lookup.Fetch(ctx, city)
	if err != nil {
		return nil, err
	}
	return result, nil
}
