// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// derivationtool builds mock Espresso chains and derivation inputs, and runs the verifier on them
// outside of a proving environment.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/espresso-derivation/blockstore"
	"github.com/offchainlabs/espresso-derivation/cmd/genericconf"
	"github.com/offchainlabs/espresso-derivation/cmd/util/confighelpers"
	"github.com/offchainlabs/espresso-derivation/derivation"
	"github.com/offchainlabs/espresso-derivation/derivation/mockchain"
	"github.com/offchainlabs/espresso-derivation/derivationio"
)

func main() {
	args := os.Args
	if len(args) < 2 {
		fmt.Println("Usage: derivationtool [mock|inputs|execute|param] ...")
		os.Exit(1)
	}

	var err error
	switch strings.ToLower(args[1]) {
	case "mock":
		err = mock(args[2:])
	case "inputs":
		err = inputs(args[2:])
	case "execute":
		err = execute(args[2:])
	case "param":
		err = param(args[2:])
	default:
		err = fmt.Errorf("unknown command '%s', valid commands are: mock, inputs, execute, param", args[1])
	}
	if closeErr := genericconf.CloseFileLogger(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseSubcommand(f *flag.FlagSet, args []string, config interface{}, logConfig *genericconf.LoggingConfig) error {
	genericconf.LoggingConfigAddOptions("log", f)
	genericconf.ConfConfigAddOptions("conf", f)
	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return err
	}
	if err := confighelpers.EndCommonParse(k, config); err != nil {
		return err
	}
	return genericconf.InitLog(logConfig, genericconf.DefaultPathResolver(""))
}

type MockConfig struct {
	Store blockstore.Config         `koanf:"store"`
	Chain mockchain.Config          `koanf:"chain"`
	Log   genericconf.LoggingConfig `koanf:"log"`
	Conf  genericconf.ConfConfig    `koanf:"conf"`
}

func mock(args []string) error {
	f := flag.NewFlagSet("derivationtool mock", flag.ContinueOnError)
	blockstore.ConfigAddOptions("store", f)
	mockchain.ConfigAddOptions("chain", f)
	var config MockConfig
	if err := parseSubcommand(f, args, &config, &config.Log); err != nil {
		return err
	}

	store, err := blockstore.Open(&config.Store)
	if err != nil {
		return err
	}
	chain, gen, err := mockchain.Generate(&config.Chain, store)
	if err != nil {
		return errors.Join(err, store.Close())
	}
	fmt.Printf("Generated %d blocks in %s\n", chain.NumBlocks(), config.Store.DataDir)
	fmt.Printf("Namespace: %d\n", gen.NamespaceID())
	fmt.Printf("Block Merkle tree root: %v\n", chain.Root())
	fmt.Printf("VID param fingerprint: %v\n", chain.Param().Hash())
	return store.Close()
}

type InputsConfig struct {
	Store            blockstore.Config         `koanf:"store"`
	Namespace        uint32                    `koanf:"namespace"`
	From             uint64                    `koanf:"from"`
	To               uint64                    `koanf:"to"`
	Output           string                    `koanf:"output"`
	CompressionLevel int                       `koanf:"compression-level"`
	Log              genericconf.LoggingConfig `koanf:"log"`
	Conf             genericconf.ConfConfig    `koanf:"conf"`
}

func inputs(args []string) error {
	f := flag.NewFlagSet("derivationtool inputs", flag.ContinueOnError)
	blockstore.ConfigAddOptions("store", f)
	f.Uint32("namespace", 0, "namespace whose data forms the rollup payload")
	f.Uint64("from", 0, "first block height to include")
	f.Uint64("to", 0, "block height to stop before (0 = end of chain)")
	f.String("output", "inputs.bin", "file to write the input stream to")
	f.Int("compression-level", -1, "brotli compression level of the stream (negative = uncompressed)")
	var config InputsConfig
	if err := parseSubcommand(f, args, &config, &config.Log); err != nil {
		return err
	}

	store, err := blockstore.Open(&config.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("error closing block store", "err", err)
		}
	}()
	chain, err := mockchain.LoadChain(store)
	if err != nil {
		return err
	}
	to := config.To
	if to == 0 {
		to = chain.NumBlocks()
	}
	in, err := chain.Inputs(config.Namespace, config.From, to)
	if err != nil {
		return err
	}

	file, err := os.Create(config.Output)
	if err != nil {
		return err
	}
	if err := derivationio.WriteInputs(file, in, config.CompressionLevel); err != nil {
		return errors.Join(err, file.Close())
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %d proofs covering %d payload bytes to %s\n", len(in.Proofs), len(in.Payload), config.Output)
	return nil
}

type ExecuteConfig struct {
	Input    string                    `koanf:"input"`
	Verifier derivation.Config         `koanf:"verifier"`
	Metrics  bool                      `koanf:"metrics"`
	Log      genericconf.LoggingConfig `koanf:"log"`
	Conf     genericconf.ConfConfig    `koanf:"conf"`
}

func execute(args []string) error {
	f := flag.NewFlagSet("derivationtool execute", flag.ContinueOnError)
	f.String("input", "inputs.bin", "file to read the input stream from")
	derivation.ConfigAddOptions("verifier", f)
	f.Bool("metrics", false, "print collected metrics after the run")
	var config ExecuteConfig
	if err := parseSubcommand(f, args, &config, &config.Log); err != nil {
		return err
	}

	verifier, err := derivation.NewVerifier(&config.Verifier)
	if err != nil {
		return err
	}
	file, err := os.Open(config.Input)
	if err != nil {
		return err
	}
	in, err := derivationio.ReadInputs(file)
	if closeErr := file.Close(); closeErr != nil {
		log.Warn("error closing input", "err", closeErr)
	}
	if err != nil {
		return err
	}

	start := time.Now()
	pub, verifyErr := verifier.Verify(in)
	elapsed := time.Since(start)
	if pub != nil {
		fmt.Printf("Verification result: %v\n", pub.VerificationResult)
		fmt.Printf("Rollup txs commit: %v\n", pub.RollupTxsCommit)
		fmt.Printf("VID param hash: %v\n", pub.VidParamHash)
		fmt.Printf("Namespace: %d\n", pub.NamespaceID)
		fmt.Printf("Block Merkle tree commitment: %v\n", pub.BlockMerkleTreeComm)
		for _, block := range pub.Blocks {
			fmt.Printf("  block %d: %v\n", block.Height, block.Range)
		}
	}
	fmt.Printf("Verified %d proofs over %d bytes in %v\n", len(in.Proofs), len(in.Payload), elapsed)
	if config.Metrics {
		metrics.WriteOnce(metrics.DefaultRegistry, os.Stdout)
	}
	return verifyErr
}

type ParamConfig struct {
	Degree uint64                    `koanf:"degree"`
	Seed   int64                     `koanf:"seed"`
	Output string                    `koanf:"output"`
	Log    genericconf.LoggingConfig `koanf:"log"`
	Conf   genericconf.ConfConfig    `koanf:"conf"`
}

func param(args []string) error {
	f := flag.NewFlagSet("derivationtool param", flag.ContinueOnError)
	f.Uint64("degree", mockchain.DefaultConfig.SrsDegree, "number of G1 powers in the reference string")
	f.Int64("seed", mockchain.DefaultConfig.Seed, "seed the insecure secret is derived from")
	f.String("output", "", "file to write the encoded parameters to (empty = only print the fingerprint)")
	var config ParamConfig
	if err := parseSubcommand(f, args, &config, &config.Log); err != nil {
		return err
	}

	vidParam, err := mockchain.NewTestParam(config.Degree, config.Seed)
	if err != nil {
		return err
	}
	if config.Output != "" {
		if err := os.WriteFile(config.Output, vidParam.Bytes(), 0o644); err != nil {
			return err
		}
	}
	fmt.Printf("VID param fingerprint: %v (degree %d)\n", vidParam.Hash(), vidParam.Degree())
	return nil
}
