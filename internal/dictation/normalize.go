package dictation

import "strings"

// Formatter turns raw recognized text into the string to insert, given the
// host text immediately before the cursor.
type Formatter func(text, before string) string

// Normalize is the Formatter for accumulated dictation. It trims the text,
// adds a leading space when the preceding text does not end in whitespace,
// and terminates the utterance with ". " unless it already ends a sentence,
// in which case it ensures a single trailing space.
func Normalize(text, before string) string {
	out := leadingSpace(strings.TrimSpace(text), before)
	switch {
	case !endsSentence(out):
		out += ". "
	case !endsSpace(out):
		out += " "
	}
	return out
}

// PadSpaces is the Formatter for continuous mode. It only pads with spaces
// and never adds punctuation.
func PadSpaces(text, before string) string {
	out := leadingSpace(strings.TrimSpace(text), before)
	if !endsSpace(out) {
		out += " "
	}
	return out
}

func leadingSpace(text, before string) string {
	if before != "" && !endsSpace(before) {
		return " " + text
	}
	return text
}

func endsSpace(s string) bool {
	return strings.HasSuffix(s, " ") || strings.HasSuffix(s, "\n")
}

// endsSentence reports whether s ends with sentence-terminating punctuation
// or a line break.
func endsSentence(s string) bool {
	return strings.HasSuffix(s, ".") ||
		strings.HasSuffix(s, "!") ||
		strings.HasSuffix(s, "?") ||
		strings.HasSuffix(s, "\n")
}

// clauseEndings are the suffixes that mark a natural pause in speech.
var clauseEndings = []string{",", " and ", " but ", " however ", " therefore ", " so ", " then "}

func endsClause(s string) bool {
	for _, suffix := range clauseEndings {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// Comparator reports whether two utterances are duplicates.
type Comparator func(a, b string) bool

// Literal treats utterances as duplicates only when they are identical.
func Literal(a, b string) bool { return a == b }

// Folded treats utterances as duplicates when they differ only in case or
// whitespace.
func Folded(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}

// ComparatorByName resolves a configured comparator name. Unknown names and
// the empty string select Literal.
func ComparatorByName(name string) Comparator {
	if name == "fold" {
		return Folded
	}
	return Literal
}
