package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/adstudio-backend/internal/platform/llm"
)

const catalogPathEnv = "PROMPTS_YAML_PATH"

//go:embed prompts.yaml
var embeddedCatalog []byte

type catalogFile struct {
	Version int    `yaml:"version"`
	Prompts []Entry `yaml:"prompts"`
}

// Prompt is a rendered template ready for an llm.Completer.
type Prompt struct {
	Name        PromptName
	Version     int
	System      string
	User        string
	Temperature float64
	JSON        bool
}

func (p Prompt) Request() llm.Request {
	return llm.Request{
		System:      p.System,
		Prompt:      p.User,
		Temperature: p.Temperature,
		JSON:        p.JSON,
	}
}

// Registry holds the compiled prompt catalog.
type Registry struct {
	source    string
	templates map[PromptName]Template
}

// Load reads the catalog from PROMPTS_YAML_PATH when set, otherwise from the
// copy embedded in the binary.
func Load() (*Registry, error) {
	if path := strings.TrimSpace(os.Getenv(catalogPathEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", catalogPathEnv, err)
		}
		return Parse(raw, path)
	}
	return Parse(embeddedCatalog, "embedded")
}

// MustDefault returns the embedded catalog and panics if it does not compile.
func MustDefault() *Registry {
	r, err := Parse(embeddedCatalog, "embedded")
	if err != nil {
		panic(err)
	}
	return r
}

// Parse compiles a YAML catalog. Every name in All must be defined exactly once.
func Parse(raw []byte, source string) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("prompt catalog %s: %w", source, err)
	}
	r := &Registry{source: source, templates: make(map[PromptName]Template, len(file.Prompts))}
	for _, entry := range file.Prompts {
		if _, dup := r.templates[entry.Name]; dup {
			return nil, fmt.Errorf("prompt catalog %s: duplicate prompt %q", source, entry.Name)
		}
		t, err := MakeTemplate(entry)
		if err != nil {
			return nil, fmt.Errorf("prompt catalog %s: %w", source, err)
		}
		r.templates[entry.Name] = t
	}
	var missing []string
	for _, name := range All {
		if _, ok := r.templates[name]; !ok {
			missing = append(missing, string(name))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("prompt catalog %s: missing prompts: %s", source, strings.Join(missing, ", "))
	}
	return r, nil
}

func (r *Registry) Source() string { return r.source }

// Build validates in and renders the named prompt.
func (r *Registry) Build(name PromptName, in Input) (Prompt, error) {
	t, ok := r.templates[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", name)
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	system, err := t.System(in)
	if err != nil {
		return Prompt{}, err
	}
	user, err := t.User(in)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{
		Name:        t.Name,
		Version:     t.Version,
		System:      system,
		User:        user,
		Temperature: t.Temperature,
		JSON:        t.JSON,
	}, nil
}
