// The main package for the parliament-monitor executable.
package main

import (
	"fmt"
	"os"

	"github.com/parlwatch/parliament-monitor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
