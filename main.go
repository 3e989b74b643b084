package main

import "github.com/linanwx/sharebridge/cmd"

func main() {
	cmd.Execute()
}
