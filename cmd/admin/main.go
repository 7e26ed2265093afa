// Command admin runs maintenance jobs against the prakriti database.
package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
