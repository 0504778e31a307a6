package main

import (
	"fmt"
	"os"

	"github.com/xela07ax/shuma-dashboard/cmd/dashboard/commands"
)

func main() {
	if err := commands.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
