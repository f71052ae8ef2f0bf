package main

import (
	"fmt"
	"os"

	"go-verification-gateway/internal/tools/verifyctl"
)

func main() {
	if err := verifyctl.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
