package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/minhyannv/weather-agent-go/pkg/weather"
)

type stubLookup struct {
	result weather.Result
	err    error
	cities []string
}

func (s *stubLookup) Fetch(_ context.Context, city string) (weather.Result, error) {
	s.cities = append(s.cities, city)
	return s.result, s.err
}

type namedTool struct {
	spec Spec
}

func (n namedTool) Spec() Spec { return n.spec }

func (n namedTool) Invoke(context.Context, string) (any, error) { return map[string]any{}, nil }

func newWeatherRegistry(t *testing.T, lookup WeatherLookup) *Registry {
	t.Helper()
	catalog, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	tool, err := NewWeatherTool(lookup, catalog)
	if err != nil {
		t.Fatalf("NewWeatherTool: %v", err)
	}
	registry, err := NewRegistry(tool)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

func TestEmbeddedCatalogDescribesWeatherTool(t *testing.T) {
	catalog, err := LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	spec, ok := catalog.Lookup(WeatherToolName)
	if !ok {
		t.Fatalf("expected %s in catalog", WeatherToolName)
	}
	if spec.Description == "" || spec.Input != "city: string" {
		t.Fatalf("unexpected spec %+v", spec)
	}
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	if _, err := ParseCatalog([]byte("tools:\n  - description: nameless\n")); err == nil {
		t.Fatal("expected error for missing name")
	}
	dup := "tools:\n  - name: a\n  - name: a\n"
	if _, err := ParseCatalog([]byte(dup)); err == nil {
		t.Fatal("expected error for duplicate name")
	}
	if _, err := ParseCatalog([]byte("tools: [")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestResolveIsPure(t *testing.T) {
	registry := newWeatherRegistry(t, &stubLookup{})

	first, err := registry.Resolve(WeatherToolName)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := registry.Resolve(WeatherToolName)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first != second {
		t.Fatal("expected the same tool on repeated resolve")
	}
	if first.Spec() != second.Spec() {
		t.Fatal("expected the same spec on repeated resolve")
	}
}

func TestResolveUnknownTool(t *testing.T) {
	registry := newWeatherRegistry(t, &stubLookup{})

	_, err := registry.Resolve("getStockPrice")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDescribeKeepsRegistrationOrder(t *testing.T) {
	registry, err := NewRegistry(
		namedTool{spec: Spec{Name: "b"}},
		namedTool{spec: Spec{Name: "a"}},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	specs := registry.Describe()
	if len(specs) != 2 || specs[0].Name != "b" || specs[1].Name != "a" {
		t.Fatalf("unexpected specs %+v", specs)
	}
	specs[0].Name = "mutated"
	if registry.Describe()[0].Name != "b" {
		t.Fatal("Describe must return a copy")
	}
}

func TestNewRegistryRejectsDuplicatesAndBlankNames(t *testing.T) {
	if _, err := NewRegistry(namedTool{spec: Spec{Name: "a"}}, namedTool{spec: Spec{Name: "a"}}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := NewRegistry(namedTool{spec: Spec{Name: " "}}); err == nil {
		t.Fatal("expected blank name error")
	}
}

func TestWeatherToolInvoke(t *testing.T) {
	lookup := &stubLookup{result: weather.Result{Temperature: 29.54, Description: "few clouds", Humidity: 23, WindSpeed: 5.53}}
	registry := newWeatherRegistry(t, lookup)
	tool, _ := registry.Resolve(WeatherToolName)

	got, err := tool.Invoke(context.Background(), "  Bengaluru ")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != lookup.result {
		t.Fatalf("expected %+v, got %+v", lookup.result, got)
	}
	if len(lookup.cities) != 1 || lookup.cities[0] != "Bengaluru" {
		t.Fatalf("expected trimmed city, got %v", lookup.cities)
	}

	if _, err := tool.Invoke(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty city")
	}
	if len(lookup.cities) != 1 {
		t.Fatal("empty input must not reach the lookup")
	}
}

func TestWeatherToolPropagatesLookupFailure(t *testing.T) {
	lookup := &stubLookup{err: &weather.LookupError{City: "Nowhereville", Reason: "city not found"}}
	registry := newWeatherRegistry(t, lookup)
	tool, _ := registry.Resolve(WeatherToolName)

	_, err := tool.Invoke(context.Background(), "Nowhereville")
	if !errors.Is(err, weather.ErrLookup) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestNewWeatherToolRequiresCatalogEntry(t *testing.T) {
	catalog, err := ParseCatalog([]byte("tools: []\n"))
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if _, err := NewWeatherTool(&stubLookup{}, catalog); err == nil {
		t.Fatal("expected error when catalog lacks the weather tool")
	}
}
