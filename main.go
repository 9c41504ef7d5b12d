package main

import (
	"os"

	"github.com/khanhnv2901/seca-suite/cmd"
)

var (
	execCmd = cmd.Execute
	exit    = os.Exit
)

func main() {
	exit(execCmd())
}
