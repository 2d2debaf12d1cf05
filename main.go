package main

import "nuvyx/cmd"

func main() {
	cmd.Execute()
}
