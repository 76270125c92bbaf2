// Package config provides the configuration for plasmashop.
//
// Configuration is organized in layers with higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  4. Command Line Flags      │  ← Highest priority (applied by cmd)
//	├─────────────────────────────┤
//	│  3. Environment Variables   │  ← PLASMASHOP_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← plasmashop.toml / plasmashop.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// # Configuration Files
//
// TOML and YAML are both accepted; the extension picks the parser:
//
//	# ~/.config/plasmashop/plasmashop.toml
//	[logging]
//	level = "info"
//
//	[document]
//	encoding = "utf-8"     # ansi, utf-8, utf-16, utf-32
//	encryption = "none"    # none, xtea, aes, droid
//	lineEnding = "keep"    # keep, lf, crlf, cr
//
//	[keys]
//	droid = "31415926 53589793 23846264 33832795"
//
//	[watch]
//	debounceDelay = "100ms"
//	bufferSize = 64
//
// A missing file is not an error; defaults and the environment still apply.
//
// # Error Handling
//
//   - *loader.ParseError: a config file could not be parsed
//   - *ValidationError: a setting holds a value plasmashop cannot use
package config
