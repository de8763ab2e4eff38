// The main package for the tubescan executable.
package main

import (
	"github.com/ndtworks/tubescan/cmd"
)

func main() {
	cmd.Execute()
}
