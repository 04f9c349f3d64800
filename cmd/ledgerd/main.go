package main

import "hyip-ledger/internal/cli"

func main() {
	cli.Execute()
}
