package main

import (
	"os"

	"github.com/afikmenashe/patient-alerting/services/pmctl/internal/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
