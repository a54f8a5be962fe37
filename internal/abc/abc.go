// ABOUTME: Validity check for ABC-notation seed text
// ABOUTME: Accepts whitespace-separated tokens drawn from the folk-rnn vocabulary shape

package abc

import (
	"regexp"
	"strings"
)

// Token classes mirror the worker's vocabulary: information fields, notes
// with optional accidental/octave/duration, rests, bar lines and repeats,
// tuplet and broken-rhythm markers, and the literal start/stop symbols the
// model emits.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z]:[^\s]+$`),                                // fields, e.g. M:4/4, K:Cmaj
	regexp.MustCompile(`^(\^{1,2}|_{1,2}|=)?[a-gA-G](,+|'+)?\d*(/\d*)?$`), // notes
	regexp.MustCompile(`^[zZx]\d*(/\d*)?$`),                             // rests
	regexp.MustCompile(`^(\|\]?|\|\||\|:|:\|\d?|::|\[\d)$`),             // bars and repeats
	regexp.MustCompile(`^\([2-9]$`),                                     // tuplets
	regexp.MustCompile(`^[<>]{1,3}$`),                                   // broken rhythm
	regexp.MustCompile(`^(\*|</s>|<s>)$`),                               // model control symbols
}

// Valid reports whether text is acceptable ABC seed input. Empty text is
// valid; otherwise every whitespace-separated token must match the
// vocabulary.
func Valid(text string) bool {
	for _, token := range strings.Fields(text) {
		if !validToken(token) {
			return false
		}
	}
	return true
}

func validToken(token string) bool {
	for _, p := range tokenPatterns {
		if p.MatchString(token) {
			return true
		}
	}
	return false
}
