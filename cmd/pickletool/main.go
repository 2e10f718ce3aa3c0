// Command pickletool inspects and converts Python pickles.
//
//	pickletool dis data.pickle
//	pickletool decode --format json < data.pickle
//	pickletool encode --from yaml -o data.pickle values.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pickletool:", err)
		os.Exit(1)
	}
}
