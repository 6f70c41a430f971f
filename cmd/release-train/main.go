package main

import "release-train/internal/cli"

func main() {
	cli.Execute()
}
