package main

import "github.com/dgallion1/docgraph/internal/cli"

func main() {
	cli.Execute()
}
