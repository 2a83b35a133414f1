package flatten

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// Rules is the declarative form of a KeyFilter, loaded from a YAML file.
// Skip patterns use path.Match glob syntax and are checked against the
// original key; Rename maps exact keys to replacement names.
type Rules struct {
	Skip   []string          `yaml:"skip"`
	Rename map[string]string `yaml:"rename"`
}

// LoadRules reads and validates a rule file.
func LoadRules(rulePath string) (*Rules, error) {
	data, err := os.ReadFile(rulePath)
	if err != nil {
		return nil, fmt.Errorf("flatten: reading rules: %w", err)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("flatten: parsing rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) validate() error {
	for _, pat := range r.Skip {
		if _, err := path.Match(pat, "probe"); err != nil {
			return fmt.Errorf("flatten: bad skip pattern %q: %w", pat, err)
		}
	}
	for from, to := range r.Rename {
		if to == "" {
			return fmt.Errorf("flatten: rename target for %q is empty", from)
		}
	}
	return nil
}

// Filter compiles the rules into a KeyFilter. A nil receiver yields the
// identity filter.
func (r *Rules) Filter() KeyFilter {
	if r == nil || (len(r.Skip) == 0 && len(r.Rename) == 0) {
		return Identity
	}
	return func(key string) (string, error) {
		for _, pat := range r.Skip {
			// Patterns are validated at load time; path.Match cannot
			// fail here.
			if ok, _ := path.Match(pat, key); ok {
				return "", ErrSkipKey
			}
		}
		if to, ok := r.Rename[key]; ok {
			return to, nil
		}
		return key, nil
	}
}
