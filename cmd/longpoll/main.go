// Command longpoll runs and inspects subscribe event engine clients.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/longpoll/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "longpoll:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
