// Command eventctl administers the event map database: schema, accounts,
// collections and bulk imports.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
