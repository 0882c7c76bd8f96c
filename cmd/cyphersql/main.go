// Package main is the entry point for the cyphersql CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/P-wig/cyphersql/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		// Argument and flag errors from cobra are usage errors that have not
		// been printed yet.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}
