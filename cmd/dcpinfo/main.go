// Command dcpinfo describes a Digital Cinema Package: its playlists, reels
// and assets, signatures, and optionally its subtitle events.
package main

import (
	"os"

	"dcpkit/internal/cli"
)

func main() {
	os.Exit(cli.Execute(newRootCommand(), os.Stderr))
}
