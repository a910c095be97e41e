package main

import "moexwatch/internal/cli"

func main() {
	cli.Execute()
}
