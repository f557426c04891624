package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kbukum/relay/config"
	_ "github.com/kbukum/relay/discovery/consul"
	_ "github.com/kbukum/relay/discovery/etcd"
	_ "github.com/kbukum/relay/discovery/redis"
	_ "github.com/kbukum/relay/discovery/static"
	"github.com/kbukum/relay/internal/provider"
	"github.com/kbukum/relay/version"
)

func main() {
	app := &cli.App{
		Name:    "provider",
		Usage:   "answer /hello/{name} and register in the service registry",
		Version: version.Get().String(),
		Flags:   loaderFlags(),
		Action:  run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	var cfg provider.Config
	if err := config.LoadConfig("provider", &cfg, loaderOptions(c)...); err != nil {
		return err
	}
	svc, err := provider.New(&cfg)
	if err != nil {
		return err
	}
	return svc.Run(c.Context)
}
