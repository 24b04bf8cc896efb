package main

import "github.com/josephlewis42/vsh/cmd"

func main() {
	cmd.Execute()
}
