package main

import (
	"ClipForge/cmd"
)

func main() {
	cmd.Execute()
}
