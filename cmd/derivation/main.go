// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// derivation reads one input stream, checks it and commits the public inputs. It panics on any
// failure so that no output is produced for inputs that did not verify.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	koanfjson "github.com/knadh/koanf/parsers/json"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/espresso-derivation/cmd/genericconf"
	"github.com/offchainlabs/espresso-derivation/cmd/util/confighelpers"
	"github.com/offchainlabs/espresso-derivation/derivation"
	"github.com/offchainlabs/espresso-derivation/derivationio"
)

type DerivationConfig struct {
	Input    string                    `koanf:"input"`
	Output   string                    `koanf:"output"`
	Verifier derivation.Config         `koanf:"verifier"`
	Log      genericconf.LoggingConfig `koanf:"log"`
	Metrics  bool                      `koanf:"metrics"`
	Conf     genericconf.ConfConfig    `koanf:"conf"`
}

var DefaultDerivationConfig = DerivationConfig{
	Input:    "-",
	Output:   "-",
	Verifier: derivation.DefaultConfig,
	Log:      genericconf.DefaultLoggingConfig,
	Metrics:  false,
	Conf:     genericconf.ConfConfigDefault,
}

func printSampleUsage(progname string) {
	fmt.Printf("\n")
	fmt.Printf("Sample usage:                  %s --input inputs.bin --output public.rlp \n", progname)
}

func parseDerivationConfig(args []string) (*DerivationConfig, error) {
	f := flag.NewFlagSet("derivation", flag.ContinueOnError)
	f.String("input", DefaultDerivationConfig.Input, "file to read the input stream from ('-' for stdin)")
	f.String("output", DefaultDerivationConfig.Output, "file to write the public inputs to ('-' for stdout)")
	derivation.ConfigAddOptions("verifier", f)
	genericconf.LoggingConfigAddOptions("log", f)
	f.Bool("metrics", DefaultDerivationConfig.Metrics, "collect metrics and print them to stderr on exit")
	genericconf.ConfConfigAddOptions("conf", f)

	k, err := confighelpers.BeginCommonParse(f, args)
	if err != nil {
		return nil, err
	}
	var config DerivationConfig
	if err := confighelpers.EndCommonParse(k, &config); err != nil {
		return nil, err
	}
	if config.Conf.Dump {
		if err := confighelpers.DumpConfig(k, nil); err != nil {
			return nil, err
		}
		c, err := k.Marshal(koanfjson.Parser())
		if err != nil {
			return nil, fmt.Errorf("unable to marshal config file to JSON: %w", err)
		}
		fmt.Println(string(c))
		os.Exit(0)
	}
	return &config, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func main() {
	config, err := parseDerivationConfig(os.Args[1:])
	if err != nil {
		confighelpers.PrintErrorAndExit(err, printSampleUsage)
	}
	if err := genericconf.InitLog(&config.Log, genericconf.DefaultPathResolver("")); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := genericconf.CloseFileLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
		}
	}()

	verifier, err := derivation.NewVerifier(&config.Verifier)
	if err != nil {
		panic(fmt.Sprintf("Invalid verifier config: %v", err))
	}

	input, err := openInput(config.Input)
	if err != nil {
		panic(fmt.Sprintf("Error opening input: %v", err))
	}
	in, err := derivationio.ReadInputs(input)
	if closeErr := input.Close(); closeErr != nil {
		log.Warn("error closing input", "err", closeErr)
	}
	if err != nil {
		panic(fmt.Sprintf("Error reading inputs: %v", err))
	}

	pub, err := verifier.Verify(in)
	if err != nil && pub == nil {
		panic(fmt.Sprintf("Derivation check failed: %v", err))
	}
	if err != nil {
		log.Error("derivation did not verify", "err", err)
	}

	output, err := openOutput(config.Output)
	if err != nil {
		panic(fmt.Sprintf("Error opening output: %v", err))
	}
	if err := derivationio.NewOutputWriter(output).CommitPublicInputs(pub); err != nil {
		panic(fmt.Sprintf("Error committing public inputs: %v", err))
	}
	if err := output.Close(); err != nil {
		panic(fmt.Sprintf("Error closing output: %v", err))
	}

	if config.Metrics {
		metrics.WriteOnce(metrics.DefaultRegistry, os.Stderr)
	}
}
