package config

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"
)

// parseToml merges the values of a toml document into cfg. Unknown keys are
// an error in strict mode and are otherwise ignored. A STRICT key in the
// document itself also enables strict mode.
func parseToml(r io.Reader, strict bool, cfg *Config) error {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return err
	}

	known := map[string]struct{}{}
	for _, option := range cfg.options() {
		key, ok := option.getTomlKey()
		if !ok {
			continue
		}
		known[key] = struct{}{}
		value := tree.Get(key)
		if value == nil {
			continue
		}
		if err := option.setValue(value); err != nil {
			return fmt.Errorf("invalid config value for %s: %w", key, err)
		}
	}

	if !strict && !cfg.Strict {
		return nil
	}
	var unknown []string
	for _, key := range tree.Keys() {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown config keys: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// MarshalTOML renders the current configuration as a toml document, with the
// usage of every option as a comment.
func (cfg *Config) MarshalTOML() ([]byte, error) {
	tree, err := toml.TreeFromMap(map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	for _, option := range cfg.options() {
		key, ok := option.getTomlKey()
		if !ok {
			continue
		}
		value, err := option.marshalTOML()
		if err != nil {
			return nil, err
		}
		tree.SetWithComment(key, strings.ReplaceAll(option.Usage, "\n", " "), false, value)
	}
	return tree.Marshal()
}
