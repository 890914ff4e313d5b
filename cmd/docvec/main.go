// Command docvec is the entry point for the document vector store. It
// provides a CLI (via Cobra) for ingesting and querying documents and an
// HTTP server exposing the same store as a REST API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/docvec-go/cmd/docvec/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
