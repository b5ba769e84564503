//go:build tools
// +build tools

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"rng-drbg/internal/drbg"
)

// seedcalc instantiates a DRBG from hex material and prints two generate
// outputs, the layout of the CAVP known-answer files.
func main() {
	cfgString := flag.String("config", "Hash_DRBG,SHA-256,128,reseed_only", "DRBG configuration string")
	entropyHex := flag.String("entropy", "", "entropy input (hex)")
	nonceHex := flag.String("nonce", "", "nonce (hex)")
	persHex := flag.String("pers", "", "personalization string (hex)")
	reseedHex := flag.String("reseed", "", "entropy for a reseed before generating (hex)")
	n := flag.Int("n", 0, "bytes per generate call (default: 4 digest blocks)")
	flag.Parse()

	p, err := drbg.ParseConfig(*cfgString)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	d, err := drbg.New(p)
	if err != nil {
		log.Fatalf("new: %v", err)
	}
	if err := d.InstantiateWithEntropy(mustHex(*entropyHex), mustHex(*nonceHex), mustHex(*persHex)); err != nil {
		log.Fatalf("instantiate: %v", err)
	}
	if *reseedHex != "" {
		if err := d.ReseedWithEntropy(mustHex(*reseedHex), nil); err != nil {
			log.Fatalf("reseed: %v", err)
		}
	}

	size := *n
	if size <= 0 {
		size = 4 * d.Profile().OutLen
	}
	out := make([]byte, size)
	for i := 1; i <= 2; i++ {
		if err := d.Generate(out, nil, false); err != nil {
			log.Fatalf("generate %d: %v", i, err)
		}
		fmt.Printf("generate %d: %s\n", i, hex.EncodeToString(out))
	}
	fmt.Printf("profile=%s reseed_counter=%d\n", d.Profile(), d.ReseedCounter())
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		log.Fatalf("decode hex %q: %v", s, err)
	}
	return b
}
