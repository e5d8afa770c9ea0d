// Command keyctl manages the pooled provider credentials stored in the
// router database.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to read .env file: %v\n", err)
	}

	rt := &runtime{}
	defer rt.close()

	if err := newRootCmd(rt).Execute(); err != nil {
		os.Exit(1)
	}
}
