package main

import "github.com/crystaldolphin/mcpconverse/cmd"

func main() {
	cmd.Execute()
}
