package ldb

import "github.com/emberchain/emberd/logger"

var log, _ = logger.Get(logger.SubsystemTags.EMDB)
