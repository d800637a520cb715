package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/emberchain/emberd/chain"
	"github.com/emberchain/emberd/database"
	"github.com/emberchain/emberd/database/ldb"
	"github.com/emberchain/emberd/logger"
	"github.com/emberchain/emberd/signal"
	"github.com/emberchain/emberd/util/panics"
	"github.com/emberchain/emberd/version"
)

func main() {
	defer panics.HandlePanic(log, nil)
	interrupt := signal.InterruptListener()

	cfg, params, err := parseConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	logFile := ""
	if cfg.DataDir != "" {
		logFile = filepath.Join(cfg.DataDir, defaultLogFilename)
	}
	if err := logger.InitLog(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %s\n", err)
		os.Exit(1)
	}
	if err := logger.SetLogLevels(cfg.DebugLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting log level: %s\n", err)
		os.Exit(1)
	}

	log.Infof("Version %s", version.Version())
	log.Infof("Simulating the %s network", params.Name)

	db, err := openDatabase(cfg)
	if err != nil {
		panic(errors.Wrap(err, "Error opening the chain database"))
	}
	defer db.Close()

	chainInstance, err := chain.New(&chain.Config{
		Params: params,
		DB:     db,
	})
	if err != nil {
		panic(errors.Wrap(err, "Error initializing the chain"))
	}

	doneChan := make(chan struct{})
	spawn(func() {
		if err := mineLoop(chainInstance, cfg, interrupt); err != nil {
			panic(errors.Errorf("Error in mine loop: %s", err))
		}
		doneChan <- struct{}{}
	})

	select {
	case <-doneChan:
	case <-interrupt:
	}
	log.Infof("Shut down at height %d with accumulated difficulty %s",
		chainInstance.TipHeight(), chainInstance.CurrentTotalPow())
}

// openDatabase opens the configured chain database: leveldb under the data
// directory when one is set, otherwise an in-memory database.
func openDatabase(cfg *configFlags) (database.Database, error) {
	if cfg.DataDir == "" {
		log.Infof("No data directory configured, keeping the chain in memory")
		return database.NewMemDB(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, err
	}
	return ldb.NewLevelDB(filepath.Join(cfg.DataDir, "chainstate"))
}
