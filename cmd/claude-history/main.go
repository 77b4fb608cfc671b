package main

import "github.com/strrl/claude-history/cmd/claude-history/commands"

func main() {
	commands.Execute()
}
