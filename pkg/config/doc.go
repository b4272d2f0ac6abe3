// Package config loads courier configuration from environment variables.
//
// Every component package declares its own Config struct with `env` and
// `envDefault` tags (queue.Config, channel.EmailConfig, pg.Config, ...). The
// binary loads each of them with Load, which reads an optional .env file once
// per process, parses the environment with github.com/caarlos0/env/v11 and
// caches the result per struct type:
//
//	var qcfg queue.Config
//	if err := config.Load(&qcfg); err != nil {
//		return err
//	}
//
// MustLoad panics instead of returning an error and is meant for main.
package config
