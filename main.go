package main

import (
	"bizfinder/cmd"
)

func main() {
	cmd.Execute()
}
