package main

import (
	"github.com/sidkik/mhlsync/cmd"
	"github.com/sidkik/mhlsync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
