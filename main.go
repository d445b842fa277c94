package main

import "github.com/dmpilot/dmpilot/cmd"

func main() {
	cmd.Execute()
}
