// Command dcpcombine merges several Digital Cinema Packages of one standard
// into a new package.
package main

import (
	"os"

	"dcpkit/internal/cli"
)

func main() {
	os.Exit(cli.Execute(newRootCommand(), os.Stderr))
}
