// Command s3tool is a CLI front-end over the s3tool library, grounded
// on the teacher's internal/cli/root.go cobra wiring but rebuilt
// around this library's own operation surface.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "s3tool:", msg)
		}
		os.Exit(1)
	}
}
