package main

import (
	"fmt"
	"os"
)

func main() {
	must(rootCmd.Execute())
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
