// Command campaignmesh lists, inspects, validates and runs marketing
// campaign agent trees.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
