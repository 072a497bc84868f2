package main

import (
	_ "embed"

	"github.com/notedapp/noted-sync/cmd"
)

//go:embed config/config.yaml
var c string

func main() {
	cmd.Execute(c)
}
