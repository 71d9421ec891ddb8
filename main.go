package main

import (
	"os"

	"github.com/noachFrank/DriverApp-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
