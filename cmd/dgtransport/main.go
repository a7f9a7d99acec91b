package main

import (
	"fmt"
	"os"

	"github.com/notargets/DGTransport/manager"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if manager.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
