//go:build !windows

// Command proxydll is the proxy DLL. It only builds for windows.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "proxydll is a windows DLL; build it with GOOS=windows -buildmode=c-shared")
	os.Exit(1)
}
