// ABOUTME: Deterministic stand-in for the folk-rnn generation worker, emits a fixed tune token by token
// ABOUTME: Usage: fake-worker [--model path] [--temp t] [--seed n] [--prime tokens] [--delay 50ms]

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// The stand-in tune is numbered 1, like the real worker's raw output; the
// gateway rewrites the number to the assigned tune ID.
const fakeTune = `X:1
T:№1
M:4/4
K:Cmaj
a b c d e f g | a b c d e f g |`

func main() {
	model := flag.String("model", "", "checkpoint path (ignored)")
	temp := flag.Float64("temp", 1.0, "sampling temperature (ignored)")
	seed := flag.Int("seed", 0, "random seed (ignored)")
	prime := flag.String("prime", "", "prime tokens, echoed before the tune body")
	delay := flag.Duration("delay", 20*time.Millisecond, "pause between emitted tokens")
	flag.Parse()

	_ = model
	_ = temp
	_ = seed

	if *prime != "" {
		fmt.Fprintf(os.Stderr, "fake-worker: priming with %q\n", *prime)
	}

	// Emit word by word so the gateway sees a genuinely incremental stream.
	for i, token := range strings.Split(fakeTune, " ") {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Print(token)
		os.Stdout.Sync()
		time.Sleep(*delay)
	}
	fmt.Println()
}
