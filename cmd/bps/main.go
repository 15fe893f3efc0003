// Command bps is a CLI front end over the bps package: diff two files into a
// patch, apply a patch, optimize a patch's opcode stream, or validate one
// against its declared checksums.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
