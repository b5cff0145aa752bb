package main

import "dayahead/internal/cli"

func main() {
	cli.Execute()
}
