// Package main provides the entry point for the amansuggest CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/amansuggest/cmd/amansuggest/cmd"
	"github.com/Aman-CERP/amansuggest/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
