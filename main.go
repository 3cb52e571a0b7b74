package main

import "prefork/cmd"

func main() {
	cmd.Execute()
}
