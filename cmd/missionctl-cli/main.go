// missionctl-cli posts activity, task and health records to a running
// Mission Control server. Exit code 0 on success, 1 on any error.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
