/*
Package config provides typed extraction from decoded YAML or JSON documents.

# Overview

A Config wraps a map[string]any. Accessors take a key and a default and never
fail: a missing key or a value of the wrong shape yields the default. Nested
mappings are reached with Section, and lists of mappings with Sections.

	cfg, err := config.FromFile("bus.yaml")
	if err != nil {
	    return err
	}

	depth := cfg.Int("max_depth", 32)
	journal := cfg.Section("journal")
	driver := journal.String("driver", "memory")

	for _, ev := range cfg.Sections("events") {
	    name := ev.String("name", "")
	    tags := ev.StringSlice("tags", nil)
	    // ...
	}

# Type Coercion

Duration accepts a time.ParseDuration string, a number of seconds (int,
int64, float64), or a time.Duration. Int accepts float64 only when it has no
fractional part, since JSON decodes every number as float64.

# Thread Safety

Config is read-only after construction and safe for concurrent reads.
*/
package config
