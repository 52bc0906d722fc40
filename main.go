// The main package for the postshelf executable.
package main

import (
	"github.com/JakeFAU/postshelf/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
