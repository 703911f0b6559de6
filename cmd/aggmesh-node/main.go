// Command aggmesh-node runs one node of an aggregation network over UDP.
// Every configured neighbour is treated as in radio range.
package main

import "os"

func main() {
    os.Exit(run(ParseFlags(os.Args[1:])))
}
