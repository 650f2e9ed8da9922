// Command exchange-agent synchronises local folders with the document-exchange service.
package main

import (
	"os"

	"github.com/custodia-labs/exchange-agent/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
