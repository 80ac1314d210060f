package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/robotalks/rsbus/pkg/env"
	fx "github.com/robotalks/rsbus/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	dev := env.NewConfig().MustNewDevice()
	fx.NewLoop().Add(dev).RunOrFail()
}
