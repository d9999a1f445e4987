package main

import (
	"fmt"
	"os"

	"github.com/wilhg/locale/pkg/errmodel"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(errmodel.ExitCode(err))
	}
}

func getEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
