package main

import (
	"github.com/tenderd/tenderd/cli"
)

func main() {
	var rootCmd cli.RootCmd
	rootCmd.Run()
}
