package main

import "github.com/atmsim/terminal/internal/cli"

func main() {
	cli.Execute()
}
