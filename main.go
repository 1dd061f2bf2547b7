package main

import (
	"log"
	"os"
)

var (
	GitCommit string
	GitTag    string
	BuildTime string
)

func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatal("application failed to initialized: ", err)
	}
	if err = app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
