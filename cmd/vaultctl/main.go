// Command vaultctl administers an exam vault deployment directly, without
// going through the HTTP API.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
