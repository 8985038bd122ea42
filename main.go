package main

import "github.com/bassamadnan/mailpilot/cli"

func main() {
	cli.Execute()
}
