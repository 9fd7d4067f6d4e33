package main

import (
	"flag"
	"os"

	"hindsight/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()
	os.Exit(daemonrun.Run(*configPath))
}
