// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package testflag

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
	flag "github.com/spf13/pflag"
)

var (
	fs               = flag.NewFlagSet("test", flag.ContinueOnError)
	BlockStoreEngine = fs.String("test_blockstore_engine", "", "Block store backend for tests (in-memory or pebble)")
	LogLevelFlag     = fs.String("test_loglevel", "", "Log level for tests")
	SeedFlag         = fs.Int64("seed", 0, "Seed for mock chains, zero picks the default")
	MockBlocksFlag   = fs.Int("mock_blocks", 0, "Number of blocks in generated mock chains, zero picks the default")
)

// Flags are only visible to the package that defines them, so they are passed after a "--"
// delimiter on the test command line and parsed here.
func init() {
	var args []string
	foundDelimiter := false
	for _, arg := range os.Args {
		if foundDelimiter {
			args = append(args, arg)
		}
		if arg == "--" {
			foundDelimiter = true
		}
	}
	if err := fs.Parse(args); err != nil {
		log.Crit("error parsing test flags", "err", err)
	}
}
