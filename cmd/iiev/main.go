package main

import (
	"os"

	"github.com/SHDeniz/IIEV-Ultra/cmd/iiev/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
