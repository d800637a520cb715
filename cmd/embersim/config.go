package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/emberchain/emberd/chaincfg"
	"github.com/emberchain/emberd/pow"
	"github.com/emberchain/emberd/version"
)

const defaultLogFilename = "embersim.log"

type configFlags struct {
	ShowVersion    bool   `short:"V" long:"version" description:"Display version information and exit"`
	Network        string `long:"network" default:"simnet" description:"Network to run (mainnet or simnet)"`
	DataDir        string `short:"b" long:"datadir" description:"Directory to store the chain database in. If omitted, the chain is kept in memory."`
	NumberOfBlocks uint64 `short:"n" long:"numblocks" description:"Number of blocks to mine. If omitted, will mine until the process is interrupted."`
	Algorithm      string `long:"algo" default:"blake" description:"Mining algorithm to simulate: blake, sha3 or mixed"`
	DebugLevel     string `short:"d" long:"debuglevel" default:"info" description:"Logging level: trace, debug, info, warn, error or critical"`
}

// parseConfig parses the command line and resolves the network parameters.
func parseConfig() (*configFlags, *chaincfg.Params, error) {
	cfg := &configFlags{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()

	// Show the version and exit if the version flag was specified.
	if cfg.ShowVersion {
		appName := filepath.Base(os.Args[0])
		appName = strings.TrimSuffix(appName, filepath.Ext(appName))
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	if err != nil {
		return nil, nil, err
	}

	params, err := chaincfg.ParamsByName(cfg.Network)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Algorithm {
	case "blake", "sha3", "mixed":
	default:
		return nil, nil, errors.Errorf("invalid mining algorithm %q, "+
			"must be blake, sha3 or mixed", cfg.Algorithm)
	}

	return cfg, params, nil
}

// miningAlgorithm returns the algorithm to mine the block at the given
// height with. In mixed mode the two algorithms alternate by height.
func (cfg *configFlags) miningAlgorithm(height uint64) pow.Algorithm {
	switch cfg.Algorithm {
	case "sha3":
		return pow.Sha3
	case "mixed":
		if height%2 == 0 {
			return pow.Sha3
		}
		return pow.Blake
	}
	return pow.Blake
}
