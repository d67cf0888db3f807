package main

import (
	"fmt"
	"os"

	"github.com/sokinpui/stf"
)

func main() {
	if err := stf.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
