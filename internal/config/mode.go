// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import "strings"

// Mode is the deployment mode. It is passed explicitly to the services that
// change behavior with it and is never read from the environment there.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode normalizes a mode string. Unknown values are kept as-is and
// behave like neither development nor production.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return ModeDevelopment
	case "production", "prod":
		return ModeProduction
	default:
		return Mode(strings.ToLower(strings.TrimSpace(s)))
	}
}

func (m Mode) IsDevelopment() bool { return m == ModeDevelopment }

func (m Mode) IsProduction() bool { return m == ModeProduction }

func (m Mode) String() string { return string(m) }
