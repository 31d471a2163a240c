// Package main is the entry point for the vrouter software router.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/vrouter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
