package main

import "github.com/sajided/sparkEye/internal/cli"

func main() {
	cli.Execute()
}
