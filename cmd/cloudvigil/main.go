package main

import (
	"github.com/cloudvigil/cloudvigil/cmd/cloudvigil/commands"
)

func main() {
	commands.Execute()
}
