// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package derivation

import (
	"fmt"

	flag "github.com/spf13/pflag"
)

const (
	// PolicyFailFast aborts on the first failed check and produces no output.
	PolicyFailFast = "fail-fast"
	// PolicyFailSoft runs every check and records the outcome in the output.
	PolicyFailSoft = "fail-soft"
)

type Config struct {
	Policy          string `koanf:"policy"`
	BlockSummaries  bool   `koanf:"block-summaries"`
	SchemeCacheSize int    `koanf:"scheme-cache-size"`
}

var DefaultConfig = Config{
	Policy:          PolicyFailFast,
	BlockSummaries:  false,
	SchemeCacheSize: 16,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".policy", DefaultConfig.Policy, "failure policy: "+PolicyFailFast+" aborts on the first failure, "+PolicyFailSoft+" records the verification result in the output")
	f.Bool(prefix+".block-summaries", DefaultConfig.BlockSummaries, "include the range and height of every verified block in the output")
	f.Int(prefix+".scheme-cache-size", DefaultConfig.SchemeCacheSize, "number of VID scheme instances to cache (0 = disable)")
}

func (c *Config) Validate() error {
	if c.Policy != PolicyFailFast && c.Policy != PolicyFailSoft {
		return fmt.Errorf("invalid verifier policy %q, expected %s or %s", c.Policy, PolicyFailFast, PolicyFailSoft)
	}
	if c.SchemeCacheSize < 0 {
		return fmt.Errorf("invalid scheme cache size %d", c.SchemeCacheSize)
	}
	return nil
}

func (c *Config) failSoft() bool {
	return c.Policy == PolicyFailSoft
}
