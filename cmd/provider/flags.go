package main

import (
	"github.com/urfave/cli/v2"

	"github.com/kbukum/relay/config"
)

func loaderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to config.yml",
			EnvVars: []string{"RELAY_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "path to a .env file",
		},
	}
}

func loaderOptions(c *cli.Context) []config.LoaderOption {
	var opts []config.LoaderOption
	if p := c.String("config"); p != "" {
		opts = append(opts, config.WithConfigFile(p))
	}
	if p := c.String("env-file"); p != "" {
		opts = append(opts, config.WithEnvFile(p))
	}
	return opts
}
