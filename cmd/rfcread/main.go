// Command rfcread reads tables and function metadata from an SAP system
// over RFC.
package main

import "github.com/mkfoss/nwrfc/internal/cli"

func main() {
	cli.Execute()
}
