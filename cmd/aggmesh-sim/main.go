// Command aggmesh-sim builds a whole aggregation network in virtual time and
// prints a report on the tree it formed and the aggregates the sink received.
package main

import "os"

func main() {
    os.Exit(run(ParseFlags(os.Args[1:])))
}
