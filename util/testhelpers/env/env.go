// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package env

import (
	"github.com/ethereum/go-ethereum/log"

	testflag "github.com/offchainlabs/espresso-derivation/util/testhelpers/flag"
)

const (
	MemoryDB = "in-memory"
	PebbleDB = "pebble"
)

// GetTestBlockStoreEngine picks the block store backend. CI runs once with each.
func GetTestBlockStoreEngine() string {
	engine := MemoryDB
	switch *testflag.BlockStoreEngine {
	case "", MemoryDB:
	case PebbleDB:
		engine = PebbleDB
	default:
		log.Warn("unknown test block store engine, using in-memory", "engine", *testflag.BlockStoreEngine)
	}
	log.Debug("test block store engine", "engine", engine)
	return engine
}

func GetTestSeed(fallback int64) int64 {
	if *testflag.SeedFlag != 0 {
		return *testflag.SeedFlag
	}
	return fallback
}

func GetTestMockBlocks(fallback int) int {
	if *testflag.MockBlocksFlag > 0 {
		return *testflag.MockBlocksFlag
	}
	return fallback
}
