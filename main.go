// Package main provides the entry point for the galaxy-tiling CLI.
package main

import (
	"github.com/goeckslab/Galaxy-Tiling/cmd"
)

func main() {
	cmd.Execute()
}
