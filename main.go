package main

import "github.com/make-os/kitminer/cmd"

func main() {
	cmd.Execute()
}
