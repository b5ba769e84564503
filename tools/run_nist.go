package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"rng-drbg/internal/nist"
)

// run_nist <input-file> [txt|bin01|binpacked]
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: run_nist <input-file> [txt|bin01|binpacked]")
	}
	b, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	mode := nist.ModeUnknown
	if len(os.Args) > 2 {
		if mode = nist.ParseMode(os.Args[2]); mode == nist.ModeUnknown {
			log.Fatalf("unknown mode %q", os.Args[2])
		}
	}

	bits, err := nist.Decode(b, mode)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	rep := nist.RunAll(bits)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		log.Fatalf("encode: %v", err)
	}
	if !rep.Passed {
		fmt.Fprintln(os.Stderr, "sequence did not pass")
		os.Exit(1)
	}
}
