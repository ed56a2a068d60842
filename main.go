package main

import "safeon/cmd"

func main() {
	cmd.Execute()
}
