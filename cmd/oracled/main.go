package main

import (
	"os"

	"github.com/GPTx-global/rofl-oracle/oracle/log"
)

func main() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
