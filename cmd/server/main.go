// Package main is the tokensmith command: the job service, its migrations
// and operator token minting.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
