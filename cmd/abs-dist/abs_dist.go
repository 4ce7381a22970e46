// Copyright ©2026 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// abs-dist calculates the location of modification sites relative to the
// 5'UTR, CDS and 3'UTR of the longest coding transcript they fall on.
//
// The output is a tab-delimited table with the columns chr, coord, gene_name,
// refseqID, rel_location, utr3_st and utr5_st, where rel_location is in [0,1)
// for the 5'UTR, [1,2) for the CDS and [2,3) for the 3'UTR.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kortschak/nanomd/featdist"
)

var (
	in      = flag.String("in", "", "input modification site BED file (required)")
	regions = flag.String("regions", "", "transcript region sizes file (required)")
	out     = flag.String("out", "", "output distance file name (required)")
)

func main() {
	flag.Parse()
	if *in == "" || *regions == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "invalid argument: must have in, regions and out set")
		flag.Usage()
		os.Exit(1)
	}

	sum, err := featdist.Calculate(*in, *regions, *out)
	if err != nil {
		log.Fatalf("failed to calculate distances: %v", err)
	}
	log.Printf("%d of %d sites placed: 5'UTR=%d CDS=%d 3'UTR=%d mean=%.4f median=%.4f",
		sum.Placed, sum.Sites,
		sum.Counts[featdist.UTR5], sum.Counts[featdist.CDS], sum.Counts[featdist.UTR3],
		sum.MeanRel, sum.MedianRel,
	)
}
