package main

import "portfolio-watch/internal/cli"

func main() {
	cli.Execute()
}
