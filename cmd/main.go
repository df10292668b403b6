package main

import (
	"os"

	"github.com/soundprediction/conceptgraph/cmd/conceptgraph"
)

func main() {
	if err := conceptgraph.Execute(); err != nil {
		os.Exit(1)
	}
}
