// Command gotoken generates signing keys, issues and validates tokens, revokes token ids,
// load-tests a goToken engine and compares benchmark runs from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
