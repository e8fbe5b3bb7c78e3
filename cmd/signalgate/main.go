// Command signalgate filters external signals down to the few that warrant
// an interrupt.
package main

import "github.com/ppiankov/signalgate/internal/cli"

func main() {
	cli.Execute()
}
