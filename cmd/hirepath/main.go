package main

import "github.com/hirepath/hirepath/internal/cli"

func main() {
	cli.Execute()
}
