// The main package for the origin-crawler executable.
package main

import (
	"github.com/JakeFAU/origin-crawler/cmd"
)

func main() {
	cmd.Execute()
}
