package logger

import (
	"go.uber.org/zap"
)

var Log *zap.SugaredLogger

// Init 初始化全局日志
func Init(development bool) {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}
