// Command replant replays ranges of commits onto a new base, with
// resumable sessions that survive conflicts and process restarts.
package main

import "github.com/roasbeef/replant/commands"

func main() {
	commands.Execute()
}
