package pow

import "github.com/emberchain/emberd/logger"

var log, _ = logger.Get(logger.SubsystemTags.POWD)
