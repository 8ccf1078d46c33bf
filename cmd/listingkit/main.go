package main

import (
	"fmt"
	"os"

	"github.com/livetemplate/listingkit/cmd/listingkit/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
