package main

import "github.com/newsterm/newsterm/cmd"

func main() {
	cmd.Execute()
}
