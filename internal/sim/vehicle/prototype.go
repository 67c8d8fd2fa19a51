package vehicle

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type ElementPrototype struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"`
	Bundle `yaml:",inline"`
}

// Prototype is a vehicle template. Spawned vehicles get deep copies of each
// element bundle.
type Prototype struct {
	Name     string             `yaml:"name"`
	Elements []ElementPrototype `yaml:"elements"`
}

func (p *Prototype) validate() error {
	if p.Name == "" {
		return fmt.Errorf("missing name")
	}
	if len(p.Elements) == 0 {
		return fmt.Errorf("%s: no elements", p.Name)
	}
	seen := map[string]bool{}
	for i := range p.Elements {
		ep := &p.Elements[i]
		if ep.Name == "" || seen[ep.Name] {
			return fmt.Errorf("%s: element %d: empty or duplicate name %q", p.Name, i, ep.Name)
		}
		// parents must precede children
		if ep.Parent != "" && !seen[ep.Parent] {
			return fmt.Errorf("%s: element %s: parent %q not declared before it", p.Name, ep.Name, ep.Parent)
		}
		seen[ep.Name] = true
		if ep.Layout() == 0 {
			return fmt.Errorf("%s: element %s: %w", p.Name, ep.Name, ErrEmptyLayout)
		}
		if s := ep.Seats; s != nil && len(s.Offsets) < 3*s.Count {
			return fmt.Errorf("%s: element %s: %d seat offsets for %d seats", p.Name, ep.Name, len(s.Offsets), s.Count)
		}
		if g := ep.GunBarrel; g != nil && g.PitchMin > g.PitchMax {
			return fmt.Errorf("%s: element %s: pitch_min > pitch_max", p.Name, ep.Name)
		}
	}
	return nil
}

// LoadPrototypes reads every yaml file in dir. Invalid files are logged and
// skipped; a later file wins on a duplicate name. A missing dir is empty.
func LoadPrototypes(dir string, logger *log.Logger) (map[string]*Prototype, error) {
	out := map[string]*Prototype{}
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("vehicles: %w", err)
	}
	var names []string
	for _, e := range ents {
		n := e.Name()
		if !e.IsDir() && (strings.HasSuffix(n, ".yaml") || strings.HasSuffix(n, ".yml")) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		raw, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, fmt.Errorf("vehicles %s: %w", n, err)
		}
		var p Prototype
		if err := yaml.Unmarshal(raw, &p); err != nil {
			warnf(logger, "%s: %v", n, err)
			continue
		}
		if err := p.validate(); err != nil {
			warnf(logger, "%s: %v", n, err)
			continue
		}
		if _, dup := out[p.Name]; dup {
			warnf(logger, "%s: duplicate vehicle %q, overwriting", n, p.Name)
		}
		out[p.Name] = &p
	}
	return out, nil
}

func warnf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf("WARN vehicles: "+format, args...)
	}
}
