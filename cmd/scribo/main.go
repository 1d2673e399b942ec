// Command scribo watches an inbox for patch proposals and applies, tests,
// and commits or quarantines each one.
package main

import "github.com/mesh-intelligence/scribo/internal/cli"

func main() {
	cli.Execute()
}
