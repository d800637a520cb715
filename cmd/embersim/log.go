package main

import (
	"github.com/emberchain/emberd/logger"
	"github.com/emberchain/emberd/util/panics"
)

var (
	log, _ = logger.Get(logger.SubsystemTags.EMSM)
	spawn  = panics.GoroutineWrapperFunc(log)
)
