package main

import "notifyhub/internal/cli"

func main() {
	cli.Main()
}
