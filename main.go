package main

import (
	"os"

	"github.com/Devon-White/sitemap-resolver/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
