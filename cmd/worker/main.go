package main

import "github.com/passadis/azure-a2a-translation/services/worker/cli"

func main() {
	cli.Execute()
}
