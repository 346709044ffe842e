package main

import "hypernovachain_go/cmd"

func main() {
	cmd.Execute()
}
