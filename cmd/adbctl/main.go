// Command adbctl runs raw queries against an ApertureDB server and manages
// client config files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gsaluja9/aperturedb-go/internal/logging"
)

var errUsage = errors.New(`usage:
  adbctl query  [-config path] -file query.json [-blob file]... [-out dir]
  adbctl status [-config path]
  adbctl config init     [-output path] [-force]
  adbctl config validate [-input path]`)

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "adbctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "query":
		return runQuery(args[1:], stdin, stdout)
	case "status":
		return runStatus(args[1:], stdout)
	case "config":
		return runConfig(args[1:], stdout)
	default:
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}
}
