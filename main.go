package main

import (
	"os"

	"github.com/blacktop/postgate/cmd"
	"github.com/blacktop/postgate/internal/logutil"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logutil.Errorf("%v", err)
		os.Exit(1)
	}
}
