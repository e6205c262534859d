package main

import "github.com/passadis/azure-a2a-translation/services/gateway/cli"

func main() {
	cli.Execute()
}
