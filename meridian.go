package main

import (
	"github.com/meridian-works/meridian/cmd"
	"github.com/meridian-works/meridian/pkg/env"
	"github.com/meridian-works/meridian/pkg/log"
)

func main() {
	if err := env.Process(); err != nil {
		log.Fatal("environment failure", "error", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal("meridian failure", "error", err)
	}
}
