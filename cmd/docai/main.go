// Command docai is the entry point for the document assistant. It serves the
// HTTP API used by the chat front end and offers CLI commands for ingesting
// documents and asking one-shot questions.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/docai-go/cmd/docai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
