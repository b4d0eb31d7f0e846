// nohub 是一个轻量的游戏大厅与会话发现服务。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"github.com/foxssake/nohub/application"
	"github.com/foxssake/nohub/internal/config"
	"github.com/foxssake/nohub/internal/version"
)

func main() {
	flags := pflag.NewFlagSet("nohub", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML or JSON config file")
	showVersion := flags.Bool("version", false, "print the version and exit")
	_ = flags.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	environment := env.ToMap(os.Environ())
	opts := []config.Option{config.WithEnvironment(environment)}
	if path := config.ResolveFile(*configPath, environment); path != "" {
		opts = append(opts, config.WithFile(path))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nohub: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.New(cfg).Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "nohub: %v\n", err)
		os.Exit(1)
	}
}
