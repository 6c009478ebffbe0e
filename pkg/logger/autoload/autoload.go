// Package autoload initializes the global logger from the LOG-prefixed
// environment on import.
package autoload

import (
	configx "github.com/norasett/attache/pkg/config"
	logx "github.com/norasett/attache/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
