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
	// generate from the default instance
	resp, err := http.Get(base + "/generate?n=64")
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
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
	fmt.Println("generated tx:", id)

	// fetch info
	resp2, err := http.Get(base + "/tx/" + id + "/info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "info request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp2.Body.Close()
	b2, _ := io.ReadAll(resp2.Body)
	var info map[string]interface{}
	if err := json.Unmarshal(b2, &info); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse info JSON: %v\n", err)
		os.Exit(1)
	}
	tx, _ := info["tx"].(map[string]interface{})
	if tx == nil {
		fmt.Println(string(b2))
		return
	}
	prov, _ := tx["provenance"].(map[string]interface{})
	fmt.Printf("profile: %v\n", tx["profile"])
	fmt.Printf("entropy: %v reseed_counter: %v\n", prov["entropy"], prov["reseed_counter"])
}
