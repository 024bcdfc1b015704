// Package main provides reviewctl, an operator CLI for offline diff inspection,
// webhook signing and schema migrations.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
