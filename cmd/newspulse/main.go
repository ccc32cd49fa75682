package main

import (
	"os"

	"newspulse/cmd/handlers"
)

func main() {
	if err := handlers.Execute(); err != nil {
		os.Exit(1)
	}
}
