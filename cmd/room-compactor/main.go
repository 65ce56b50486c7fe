package main

import "github.com/room-compactor/room-compactor/cmd/room-compactor/cmd"

func main() {
	cmd.Execute()
}
