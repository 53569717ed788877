// Command gosac trains Soft Actor-Critic agents on a vectorized
// Pendulum swing-up task and evaluates saved agents.
//
// Usage:
//
//	gosac train --config sac.yaml --steps 100000 --output runs/pendulum
//	gosac eval runs/pendulum_final.gob --steps 2000
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
