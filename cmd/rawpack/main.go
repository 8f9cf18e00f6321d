// Command rawpack decodes a binary record read from stdin against a
// format string and prints the resulting value tree as JSON.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	rawpack "github.com/arloliu/rawpack"
	"github.com/arloliu/rawpack/value"
)

func main() {
	os.Exit(submain())
}

func submain() int {
	log.SetFlags(0)
	log.SetPrefix("rawpack: ")

	format := flag.String("format", "", "format string describing the record layout")
	refdata := flag.String("refdata", "", "comma-separated external reference values (#0, #1, ...)")
	flag.Parse()

	if *format == "" {
		log.Println("missing -format")
		return 2
	}

	refs, err := parseRefdata(*refdata)
	if err != nil {
		log.Printf("parsing -refdata: %v", err)
		return 2
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		log.Printf("reading stdin: %v", err)
		return 2
	}

	vals, err := rawpack.Unpack(*format, data, refs...)
	if err != nil {
		log.Printf("decoding: %v", err)
		return 1
	}

	out, err := json.MarshalIndent(toJSON(vals), "", "  ")
	if err != nil {
		log.Printf("encoding output: %v", err)
		return 1
	}

	fmt.Println(string(out))

	return 0
}

func parseRefdata(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}

	var refs []int64
	for _, part := range splitComma(s) {
		var n int64
		if _, err := fmt.Sscanf(part, "%d", &n); err != nil {
			return nil, fmt.Errorf("invalid refdata value %q: %w", part, err)
		}
		refs = append(refs, n)
	}

	return refs, nil
}

func splitComma(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}

	return append(parts, s[start:])
}

// toJSON converts a decoded value tree into a json.Marshal-friendly
// representation: raw bytes become base64 text, everything else uses
// value.Value.Native()'s natural shape.
func toJSON(vals []value.Value) any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = nativeJSON(v)
	}

	return out
}

func nativeJSON(v value.Value) any {
	if raw, ok := v.Bytes(); ok {
		return base64.StdEncoding.EncodeToString(raw)
	}
	if seq, ok := v.Seq(); ok {
		out := make([]any, len(seq))
		for i, e := range seq {
			out[i] = nativeJSON(e)
		}

		return out
	}

	return v.Native()
}
