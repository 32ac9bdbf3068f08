package notify

import (
	"strings"

	"golang.org/x/net/html"
)

// Segment is a run of text from a notification message.
type Segment struct {
	Text string
	Bold bool
}

// Segments tokenizes the backend's pre-rendered message markup into text
// runs, keeping <strong>/<b> emphasis and dropping every other tag.
func Segments(markup string) []Segment {
	z := html.NewTokenizer(strings.NewReader(markup))

	var segs []Segment
	bold := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return mergeSegments(segs)
		case html.TextToken:
			text := collapseSpace(string(z.Text()))
			if text != "" {
				segs = append(segs, Segment{Text: text, Bold: bold > 0})
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "strong", "b":
				bold++
			case "br", "p", "div":
				segs = append(segs, Segment{Text: " "})
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "strong", "b":
				if bold > 0 {
					bold--
				}
			case "p", "div":
				segs = append(segs, Segment{Text: " "})
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				segs = append(segs, Segment{Text: " "})
			}
		}
	}
}

// PlainText renders the message markup as a single line of text.
func PlainText(markup string) string {
	var b strings.Builder
	for _, s := range Segments(markup) {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(collapseSpace(b.String()))
}

// collapseSpace folds whitespace runs into single spaces, keeping one
// leading or trailing space when present so adjacent runs stay separated.
func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return " "
	}
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// mergeSegments joins adjacent runs with the same emphasis and trims the
// outer whitespace.
func mergeSegments(segs []Segment) []Segment {
	var out []Segment
	for _, s := range segs {
		if n := len(out); n > 0 && (out[n-1].Bold == s.Bold || strings.TrimSpace(s.Text) == "") {
			if strings.HasSuffix(out[n-1].Text, " ") && strings.HasPrefix(s.Text, " ") {
				s.Text = s.Text[1:]
			}
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}

	if len(out) > 0 {
		out[0].Text = strings.TrimLeft(out[0].Text, " ")
		last := len(out) - 1
		out[last].Text = strings.TrimRight(out[last].Text, " ")
	}

	kept := out[:0]
	for _, s := range out {
		if s.Text != "" {
			kept = append(kept, s)
		}
	}
	return kept
}
