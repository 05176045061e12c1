package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Entry is one catalog item as written in prompts.yaml.
type Entry struct {
	Name        PromptName `yaml:"name"`
	Version     int        `yaml:"version"`
	Temperature float64    `yaml:"temperature"`
	JSON        bool       `yaml:"json"`
	System      string     `yaml:"system"`
	User        string     `yaml:"user"`
}

type Template struct {
	Name        PromptName
	Version     int
	Temperature float64
	JSON        bool
	System      func(Input) (string, error)
	User        func(Input) (string, error)
	Validate    Validator
}

// MakeTemplate compiles an Entry into a Template.
func MakeTemplate(s Entry) (Template, error) {
	if strings.TrimSpace(string(s.Name)) == "" {
		return Template{}, fmt.Errorf("missing prompt name")
	}
	if s.Version <= 0 {
		return Template{}, fmt.Errorf("invalid version for %s", s.Name)
	}
	if strings.TrimSpace(s.User) == "" {
		return Template{}, fmt.Errorf("missing user template for %s", s.Name)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return Template{}, fmt.Errorf("temperature out of range for %s: %v", s.Name, s.Temperature)
	}
	sysT, err := template.New("system").Option("missingkey=zero").Parse(s.System)
	if err != nil {
		return Template{}, fmt.Errorf("%s system template parse: %w", s.Name, err)
	}
	userT, err := template.New("user").Option("missingkey=zero").Parse(s.User)
	if err != nil {
		return Template{}, fmt.Errorf("%s user template parse: %w", s.Name, err)
	}
	render := func(t *template.Template, in Input) (string, error) {
		var b bytes.Buffer
		if err := t.Execute(&b, in); err != nil {
			return "", fmt.Errorf("%s %s template execute: %w", s.Name, t.Name(), err)
		}
		return strings.TrimSpace(b.String()), nil
	}
	tt := Template{
		Name:        s.Name,
		Version:     s.Version,
		Temperature: s.Temperature,
		JSON:        s.JSON,
		System:      func(in Input) (string, error) { return render(sysT, in) },
		User:        func(in Input) (string, error) { return render(userT, in) },
	}
	if vs := validators[s.Name]; len(vs) > 0 {
		tt.Validate = func(in Input) error {
			for _, v := range vs {
				if err := v(in); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return tt, nil
}
