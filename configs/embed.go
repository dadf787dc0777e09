// Package configs embeds the configuration templates shipped with the
// binary. The init command writes project-config.example.yaml as
// .semdex.yaml in the project root; the user template goes to
// ~/.config/semdex/config.yaml.
//
// Precedence when loading (see internal/config.Load):
//  1. Hardcoded defaults
//  2. User config (~/.config/semdex/config.yaml)
//  3. Project config (.semdex.yaml)
//  4. Environment variables (SEMDEX_*)
package configs

import _ "embed"

// UserConfigTemplate holds machine-level settings that apply to every
// project on this machine (embedding backend endpoints, cache sizing).
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate holds per-project settings meant to be committed
// with the repository (paths, search tuning, shard count).
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
