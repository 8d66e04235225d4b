// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package mockchain

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/espresso-derivation/blockstore"
	"github.com/offchainlabs/espresso-derivation/espresso"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
)

type Config struct {
	NumBlocks       uint64 `koanf:"num-blocks"`
	NumStorageNodes uint32 `koanf:"num-storage-nodes"`
	TreeHeight      uint32 `koanf:"tree-height"`
	SrsDegree       uint64 `koanf:"srs-degree"`
	MaxNamespaceLen uint64 `koanf:"max-namespace-len"`
	Seed            int64  `koanf:"seed"`
}

var DefaultConfig = Config{
	NumBlocks:       5,
	NumStorageNodes: 10,
	TreeHeight:      32,
	SrsDegree:       8,
	MaxNamespaceLen: 8 * 30,
	Seed:            0,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Uint64(prefix+".num-blocks", DefaultConfig.NumBlocks, "number of blocks to generate")
	f.Uint32(prefix+".num-storage-nodes", DefaultConfig.NumStorageNodes, "number of VID storage nodes")
	f.Uint32(prefix+".tree-height", DefaultConfig.TreeHeight, "height of the block Merkle tree")
	f.Uint64(prefix+".srs-degree", DefaultConfig.SrsDegree, "number of G1 powers in the insecure test reference string")
	f.Uint64(prefix+".max-namespace-len", DefaultConfig.MaxNamespaceLen, "maximum length in bytes of the rollup namespace in a block")
	f.Int64(prefix+".seed", DefaultConfig.Seed, "seed for the block generator")
}

func (c *Config) Validate() error {
	if c.MaxNamespaceLen < 2 {
		return fmt.Errorf("max namespace length %d is below 2", c.MaxNamespaceLen)
	}
	if c.TreeHeight > 0 && c.NumBlocks > uint64(1)<<min(c.TreeHeight, 63) {
		return fmt.Errorf("%d blocks do not fit a tree of height %d", c.NumBlocks, c.TreeHeight)
	}
	return nil
}

// NewTestParam derives an insecure reference string from seed. The secret is recoverable by
// anyone who knows the seed.
func NewTestParam(degree uint64, seed int64) (*vid.Param, error) {
	secret := new(big.Int).SetBytes(crypto.Keccak256([]byte("espresso mock srs"), big.NewInt(seed).Bytes()))
	return vid.NewTestParam(degree, secret)
}

// Generator fills a chain with random blocks, each holding the rollup namespace between two
// unrelated ones.
type Generator struct {
	chain       *Chain
	rng         *rand.Rand
	namespaceID espresso.NamespaceID
	maxNsLen    uint64
}

func NewGenerator(chain *Chain, seed int64, maxNamespaceLen uint64) *Generator {
	rng := rand.New(rand.NewSource(seed))
	return &Generator{
		chain:       chain,
		rng:         rng,
		namespaceID: rng.Uint32(),
		maxNsLen:    maxNamespaceLen,
	}
}

// Generate builds a chain from config, persisting it to store when store is not nil.
func Generate(config *Config, store *blockstore.BlockStore) (*Chain, *Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	param, err := NewTestParam(config.SrsDegree, config.Seed)
	if err != nil {
		return nil, nil, err
	}
	chain, err := NewChain(param, config.NumStorageNodes, config.TreeHeight)
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		if err := chain.Persist(store); err != nil {
			return nil, nil, err
		}
	}
	gen := NewGenerator(chain, config.Seed, config.MaxNamespaceLen)
	for i := uint64(0); i < config.NumBlocks; i++ {
		if _, err := gen.MockBlock(); err != nil {
			return nil, nil, err
		}
	}
	return chain, gen, nil
}

func (g *Generator) NamespaceID() espresso.NamespaceID {
	return g.namespaceID
}

func (g *Generator) randomBytes(n uint64) []byte {
	data := make([]byte, n)
	_, _ = g.rng.Read(data)
	return data
}

func (g *Generator) otherNamespace() espresso.NamespaceID {
	for {
		if id := g.rng.Uint32(); id != g.namespaceID {
			return id
		}
	}
}

// MockBlock appends a block whose rollup namespace holds between 1 and maxNsLen-1 bytes, with
// unrelated namespaces of up to three times that length on either side.
func (g *Generator) MockBlock() (*blockstore.Block, error) {
	nsLen := 1 + uint64(g.rng.Int63n(int64(g.maxNsLen-1)))
	before := 1 + uint64(g.rng.Int63n(int64(3*nsLen)))
	after := 1 + uint64(g.rng.Int63n(int64(3*nsLen)))
	return g.chain.AppendBlock([]NamespacePayload{
		{ID: g.otherNamespace(), Data: g.randomBytes(before)},
		{ID: g.namespaceID, Data: g.randomBytes(nsLen)},
		{ID: g.otherNamespace(), Data: g.randomBytes(after)},
	})
}

// templateHeader is modeled on a header from the Espresso staging testnet.
func templateHeader(height uint64) espresso.Header {
	return espresso.Header{
		ChainConfig: espresso.ResolvableFromChainConfig(espresso.ChainConfig{
			ChainID:      uint256.NewInt(888888888),
			MaxBlockSize: 30000000,
			BaseFee:      uint256.NewInt(0),
		}),
		Height:    height,
		Timestamp: 1720789795 + 2*height,
		L1Head:    5113 + height/6,
		L1Finalized: &espresso.L1BlockInfo{
			Number:    5088,
			Timestamp: uint256.NewInt(0x669129ec),
			Hash:      common.HexToHash("0xfc4249b13292d2617cc0dec8b0a9a666491d5fecdfe536c929207847364b2b60"),
		},
		FeeMerkleTreeRoot: common.FromHex("0xc81e3f02a6b7e7f3e8b24813a5c091d6854b87a05474b1c8b3b7ab1ca5a2faeb"),
		FeeInfo: espresso.FeeInfo{
			Account: common.HexToAddress("0x23618e81e3f5cdf7f54c3d65f7fbc0abf5b21e8f"),
			Amount:  uint256.NewInt(0),
		},
	}
}

func builderCommitment(payload []byte) [32]byte {
	return sha256.Sum256(payload)
}
