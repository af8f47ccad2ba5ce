package main

// Operate on documents without the HTTP server:
//   go run ./cmd/docctl upload ./invoice.pdf
//   go run ./cmd/docctl get <id>

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
