package main

import "github.com/tutorhub/tutorhub/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:        "tutorhub",
		Description: "Tutor marketplace search and rating service",
	}))
}
