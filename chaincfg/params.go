package chaincfg

import (
	"time"

	"github.com/pkg/errors"

	"github.com/emberchain/emberd/blocks"
	"github.com/emberchain/emberd/pow"
)

const (
	targetTimePerBlock     = 120 * time.Second
	maxTimePerBlock        = 720 * time.Second
	difficultyBlockWindow  = 90
	medianTimestampWindow  = 11
	maxBlockTimeFuture     = 540 * time.Second
	maxOrphanBlockAge      = 720
	pruningHorizon         = 2880
	simnetDifficultyWindow = 8
	simnetTimestampWindow  = 3
)

// Params defines an Ember network by its consensus parameters. Blocks valid
// on one network are invalid on any network with different parameters, so
// every component that validates or extends the chain takes a *Params.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// GenesisBlock is the first block of the chain. It is trusted as-is
	// and anchors every other validity check.
	GenesisBlock *blocks.Block

	// TargetTimePerBlock is the desired average interval between blocks.
	// The difficulty windows retarget toward this interval.
	TargetTimePerBlock time.Duration

	// MaxTimePerBlock caps the solve time a single block can contribute
	// to retargeting, so one stalled block cannot crater the difficulty.
	MaxTimePerBlock time.Duration

	// DifficultyBlockWindow is the number of blocks in each algorithm's
	// retargeting window.
	DifficultyBlockWindow int

	// MinDifficulty and MaxDifficulty clamp every computed target.
	MinDifficulty pow.Difficulty
	MaxDifficulty pow.Difficulty

	// MedianTimestampWindow is the number of recent block timestamps used
	// for the monotonicity check. A new block's timestamp must strictly
	// exceed the median of this many predecessors.
	MedianTimestampWindow int

	// MaxBlockTimeFuture is how far ahead of the node's adjusted clock a
	// block timestamp may sit before the block is rejected outright.
	MaxBlockTimeFuture time.Duration

	// MaxOrphanBlockAge is the height distance below the current tip past
	// which pooled orphan blocks are evicted.
	MaxOrphanBlockAge uint64

	// PruningHorizon is the number of blocks below the tip that must stay
	// fully rewindable. Checkpoints older than this may be compacted.
	PruningHorizon uint64
}

// MainnetParams defines the network parameters for the main Ember network.
var MainnetParams = Params{
	Name:                  "mainnet",
	GenesisBlock:          &genesisBlock,
	TargetTimePerBlock:    targetTimePerBlock,
	MaxTimePerBlock:       maxTimePerBlock,
	DifficultyBlockWindow: difficultyBlockWindow,
	MinDifficulty:         pow.MinDifficulty,
	MaxDifficulty:         pow.MaxDifficulty,
	MedianTimestampWindow: medianTimestampWindow,
	MaxBlockTimeFuture:    maxBlockTimeFuture,
	MaxOrphanBlockAge:     maxOrphanBlockAge,
	PruningHorizon:        pruningHorizon,
}

// SimnetParams defines the network parameters for the simulation network.
// The windows are shrunk so retargeting and median checks engage after a
// handful of blocks instead of dozens.
var SimnetParams = Params{
	Name:                  "simnet",
	GenesisBlock:          &simnetGenesisBlock,
	TargetTimePerBlock:    targetTimePerBlock,
	MaxTimePerBlock:       maxTimePerBlock,
	DifficultyBlockWindow: simnetDifficultyWindow,
	MinDifficulty:         pow.MinDifficulty,
	MaxDifficulty:         pow.MaxDifficulty,
	MedianTimestampWindow: simnetTimestampWindow,
	MaxBlockTimeFuture:    maxBlockTimeFuture,
	MaxOrphanBlockAge:     maxOrphanBlockAge,
	PruningHorizon:        pruningHorizon,
}

var registeredNets = make(map[string]*Params)

// Register registers the network parameters under their name so they can be
// looked up by ParamsByName. Registering two networks with the same name is
// an error.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Name]; ok {
		return errors.Errorf("duplicate network name %q", params.Name)
	}
	registeredNets[params.Name] = params
	return nil
}

// ParamsByName returns the registered parameters for the named network.
func ParamsByName(name string) (*Params, error) {
	params, ok := registeredNets[name]
	if !ok {
		return nil, errors.Errorf("unknown network %q", name)
	}
	return params, nil
}

func init() {
	mustRegister(&MainnetParams)
	mustRegister(&SimnetParams)
}

func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic(err)
	}
}
