// kensaku is a tenant-scoped document retrieval engine with exact,
// fuzzy, keyword, and vector search strategies.
package main

import (
	"fmt"
	"os"

	"github.com/kotaeru-ai/kensaku/cmd/kensaku/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
