// Command fragctl inspects and invalidates fragment records, either
// directly against the configured store and caches or through a running
// fragmentd's admin API.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fragctl:", err)
		os.Exit(1)
	}
}
