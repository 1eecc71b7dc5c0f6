// The main package for the storecrawler executable.
package main

import (
	"github.com/JakeFAU/store-locator-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
