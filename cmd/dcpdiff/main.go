// Command dcpdiff compares two Digital Cinema Packages and prints every
// discrepancy it finds. It exits 0 when the packages are identical.
package main

import (
	"os"

	"dcpkit/internal/cli"
)

func main() {
	os.Exit(cli.Execute(newRootCommand(), os.Stderr))
}
