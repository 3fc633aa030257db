// Command zkabi compiles ABI schemas and encodes, decodes and stores
// values for the zk VM.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/zkabi/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zkabi:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
