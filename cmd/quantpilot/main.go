package main

import "github.com/dyike/QuantPilot/internal/cli"

func main() {
	cli.Run()
}
