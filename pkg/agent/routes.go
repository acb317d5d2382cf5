package agent

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

const (
	KindRetrieval = "retrieval"
	KindStub      = "stub"
)

var ErrInvalidRoutes = goerr.New("invalid routing file")

type routesFile struct {
	Routes []routeEntry `yaml:"routes"`
}

type routeEntry struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Table    string   `yaml:"table"`
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
}

// LoadBindings reads a YAML routing file and builds its bindings in file order
func LoadBindings(path string, matcher Matcher, generator Generator) ([]Binding, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read routing file", goerr.V("path", path))
	}

	bindings, err := ParseBindings(raw, matcher, generator)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse routing file", goerr.V("path", path))
	}
	return bindings, nil
}

// ParseBindings builds bindings from YAML routing data
func ParseBindings(raw []byte, matcher Matcher, generator Generator) ([]Binding, error) {
	var file routesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidRoutes, "failed to decode YAML", goerr.V("error", err.Error()))
	}
	if len(file.Routes) == 0 {
		return nil, goerr.Wrap(ErrInvalidRoutes, "no routes defined")
	}

	seen := make(map[string]struct{})
	bindings := make([]Binding, 0, len(file.Routes))
	for i, route := range file.Routes {
		if route.Name == "" {
			return nil, goerr.Wrap(ErrInvalidRoutes, "route name is required", goerr.V("index", i))
		}
		if _, ok := seen[route.Name]; ok {
			return nil, goerr.Wrap(ErrInvalidRoutes, "duplicated route name", goerr.V("name", route.Name))
		}
		seen[route.Name] = struct{}{}

		var keywords []string
		for _, kw := range route.Keywords {
			// Leading and trailing spaces are significant: they mark whole-word keywords
			if strings.TrimSpace(kw) == "" {
				continue
			}
			keywords = append(keywords, strings.ToLower(kw))
		}
		if len(keywords) == 0 {
			return nil, goerr.Wrap(ErrInvalidRoutes, "route has no keywords", goerr.V("name", route.Name))
		}

		var a Agent
		switch route.Kind {
		case KindStub:
			a = NewStub(route.Name)
		case KindRetrieval:
			if route.Table == "" {
				return nil, goerr.Wrap(ErrInvalidRoutes, "retrieval route requires a table", goerr.V("name", route.Name))
			}
			var opts []RetrievalOption
			if route.Topic != "" {
				opts = append(opts, WithTopic(route.Topic))
			}
			a = NewRetrievalBacked(route.Name, route.Table, matcher, generator, opts...)
		default:
			return nil, goerr.Wrap(ErrInvalidRoutes, "unknown route kind",
				goerr.V("name", route.Name), goerr.V("kind", route.Kind))
		}

		bindings = append(bindings, Binding{Name: route.Name, Keywords: keywords, Agent: a})
	}

	return bindings, nil
}
