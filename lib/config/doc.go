// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the timewheel
// benchmark harness.
//
// Configuration is loaded from a single file specified by either the
// TIMEWHEEL_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no automatic file search. Command
// line flags override individual values after loading.
//
// Files are YAML unless they end in .json or .jsonc, which are parsed
// as JSON with comments and trailing commas. Durations are written as
// Go duration strings through [Duration].
//
// The fire log path supports ${HOME} and ${VAR:-default} expansion.
//
// This package depends on no other timewheel packages.
package config
