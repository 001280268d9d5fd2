// Command sitectl talks to the SiteBook backend directly, bypassing the
// gateway's cache, for operators debugging a business's data.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
