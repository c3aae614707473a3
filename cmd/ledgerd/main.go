package main

import "github.com/scratchearn/ledgerd/internal/cli"

func main() {
	cli.Execute()
}
