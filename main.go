// Command railmon is the railway complaint portal client and triage monitor.
package main

import "railmon/internal/cli"

func main() {
	cli.Execute()
}
