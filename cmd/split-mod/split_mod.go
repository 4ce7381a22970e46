// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// split-mod splits a modification site BED file into one file per
// modification type, <prefix>_<type>.bed, in the output directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kortschak/nanomd/modtag"
	"github.com/kortschak/nanomd/site"
)

var (
	in     = flag.String("in", "", "input modification site BED file (required)")
	out    = flag.String("out", ".", "output directory")
	prefix = flag.String("prefix", "prefix", "output file prefix")
)

func main() {
	flag.Parse()
	if *in == "" {
		fmt.Fprintln(os.Stderr, "invalid argument: must have input set")
		flag.Usage()
		os.Exit(1)
	}

	err := os.MkdirAll(*out, 0o755)
	if err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}
	counts, err := site.Split(*in, *out, *prefix)
	if err != nil {
		log.Fatalf("failed to split sites: %v", err)
	}
	for _, typ := range modtag.Types {
		log.Printf("%s: %d sites written to %s", typ, counts[typ], site.TypedPath(*out, *prefix, typ))
	}
}
