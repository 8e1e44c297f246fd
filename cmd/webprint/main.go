package main

import (
	"os"

	"github.com/vulntor/webprint/cmd/webprint/commands"
)

// main runs the webprint CLI. Exit codes:
//   - 0: success
//   - 1: general error
//   - 2: invalid input (missing or conflicting sources, invalid evidence)
//   - 3: category taxonomy unavailable
//   - 7: storage disabled
func main() {
	os.Exit(commands.Execute())
}
