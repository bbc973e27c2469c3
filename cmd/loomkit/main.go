package main

import "loomkit/internal/cli"

func main() {
	cli.Execute()
}
