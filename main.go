package main

import "github.com/fogcoal/fogcoal/cmd"

func main() {
	cmd.Execute()
}
