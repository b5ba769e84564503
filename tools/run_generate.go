//go:build tools
// +build tools

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

func main() {
	base := "http://localhost:4040"
	if len(os.Args) > 1 {
		base = os.Args[1]
	}
	// 1) generate from caller material so the output can be replayed
	url := base + "/generate?n=4096&entropy=repro" +
		"&entropy_hex=000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f" +
		"&nonce_hex=202122232425262728292a2b2c2d2e2f"
	resp, err := http.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println("--- /generate response ---")
	fmt.Println(string(b))
	var gen map[string]interface{}
	if err := json.Unmarshal(b, &gen); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse generate JSON: %v\n", err)
		os.Exit(1)
	}
	id, _ := gen["tx_id"].(string)
	if id == "" {
		fmt.Fprintln(os.Stderr, "no tx_id in generate response")
		os.Exit(1)
	}

	// 2) stats
	resp2, err := http.Get(base + "/tx/" + id + "/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "stats request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp2.Body.Close()
	b2, _ := io.ReadAll(resp2.Body)
	fmt.Println("--- /tx/{id}/stats response ---")
	fmt.Println(string(b2))
}
