package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"evm-swap/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; a malformed one is not
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
