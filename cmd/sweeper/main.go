// Sweeper - scheduled cloud waste scanner.
// Request. Scan. Snapshot.
package main

import (
	_ "github.com/frugalcloud/sweeper/providers/aws"
	_ "github.com/frugalcloud/sweeper/providers/azure"
	_ "github.com/frugalcloud/sweeper/providers/gcp"
)

func main() {
	Execute()
}
