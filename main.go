package main

import "github.com/kamusis/capindex/cmd"

func main() {
	cmd.Execute()
}
