package main

import "github.com/brensch/edgarfsn/cmd"

func main() {
	cmd.Execute()
}
