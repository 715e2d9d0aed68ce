package permission

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadOverride reads a role -> actions JSON document, e.g.
//
//	{"driver": ["inspections.view"], "admin": ["inspections.view", "inspections.export_bulk"]}
func LoadOverride(path string) (Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read permission override %s: %w", path, err)
	}

	rules := make(map[Role][]Action)
	for _, key := range v.AllKeys() {
		role, ok := ParseRole(key)
		if !ok {
			return nil, fmt.Errorf("permission override: unknown role %q", key)
		}
		for _, a := range v.GetStringSlice(key) {
			rules[role] = append(rules[role], Action(a))
		}
	}
	return NewTable(rules), nil
}

// LoadOverrideFile replaces the active table with the one in path.
func (g *Gate) LoadOverrideFile(path string) error {
	t, err := LoadOverride(path)
	if err != nil {
		return err
	}
	g.SetOverride(t)
	g.log.Info("permission.gate.override_loaded", "path", path, "roles", len(t))
	return nil
}
