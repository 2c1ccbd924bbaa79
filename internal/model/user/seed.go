package user

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed provides default development users so a fresh database is usable
// without a registration flow.
func Seed() []User {
	return []User{
		{ID: "u-ananya", Email: "ananya@codeverse.dev", DisplayName: "Ananya"},
		{ID: "u-rahul", Email: "rahul@codeverse.dev", DisplayName: "Rahul"},
		{ID: "u-priya", Email: "priya@codeverse.dev", DisplayName: "Priya"},
	}
}

// LoadSeedFile reads a YAML list of users, used to override the built-in seed
// set in development deployments.
func LoadSeedFile(path string) ([]User, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var users []User
	if err := yaml.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return users, nil
}
