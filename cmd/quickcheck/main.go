// Command quickcheck records vehicle quick-check inspections with
// autosaved server-side drafts.
package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/quickcheck/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
