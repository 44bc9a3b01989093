package rewrite

import (
	"sort"
	"strings"

	"parlift/internal/analyzer"
	"parlift/internal/errors"
	"parlift/internal/symbols"
)

type Action int

const (
	ActionInsertBefore Action = iota
	ActionInsertAfter
	ActionReplace
	ActionDelete
)

// Edit is one append-only rewrite record against the token stream.
type Edit struct {
	Range  symbols.TokenAddress
	Action Action
	Text   string
	seq    int
}

// Rewriter accumulates token-range edits and resolves them in a single
// sorted pass over the stream. Non-edited tokens, including the whitespace
// between them, are emitted verbatim. Ranges of two replace/delete edits may
// only overlap by strict containment; the outer edit wins and inner edits
// are discarded.
type Rewriter struct {
	stream *analyzer.TokenStream
	edits  []Edit
}

func NewRewriter(stream *analyzer.TokenStream) *Rewriter {
	return &Rewriter{stream: stream}
}

func (r *Rewriter) add(e Edit) {
	e.seq = len(r.edits)
	r.edits = append(r.edits, e)
}

// InsertBefore schedules text ahead of the token at index.
func (r *Rewriter) InsertBefore(index int, text string) {
	addr := symbols.TokenAddress{Start: index, Stop: index}
	r.add(Edit{Range: addr, Action: ActionInsertBefore, Text: text})
}

// InsertAfter schedules text behind the token at index.
func (r *Rewriter) InsertAfter(index int, text string) {
	addr := symbols.TokenAddress{Start: index, Stop: index}
	r.add(Edit{Range: addr, Action: ActionInsertAfter, Text: text})
}

// Replace substitutes the tokens covered by addr with text.
func (r *Rewriter) Replace(addr symbols.TokenAddress, text string) {
	r.add(Edit{Range: addr, Action: ActionReplace, Text: text})
}

// Delete removes the tokens covered by addr.
func (r *Rewriter) Delete(addr symbols.TokenAddress) {
	r.add(Edit{Range: addr, Action: ActionDelete, Text: ""})
}

// Dirty reports whether any edit has been recorded.
func (r *Rewriter) Dirty() bool {
	return len(r.edits) > 0
}

// Render applies all recorded edits and returns the rewritten source.
func (r *Rewriter) Render() (string, error) {
	spans, inserts, err := r.resolve()
	if err != nil {
		return "", err
	}

	source := r.stream.Source()
	var b strings.Builder
	prevEnd := uint(0)

	spanIdx := 0
	for i := 0; i < r.stream.Len(); i++ {
		tok := r.stream.Token(i)

		if spanIdx < len(spans) && spans[spanIdx].addr.Start == i {
			// Leading whitespace before the span stays.
			b.Write(source[prevEnd:tok.StartByte])
			for _, ins := range inserts[i] {
				if ins.Action == ActionInsertBefore {
					b.WriteString(ins.Text)
				}
			}
			b.WriteString(spans[spanIdx].text)
			prevEnd = r.stream.Token(spans[spanIdx].addr.Stop).EndByte
			i = spans[spanIdx].addr.Stop
			spanIdx++
			continue
		}

		b.Write(source[prevEnd:tok.StartByte])
		for _, ins := range inserts[i] {
			if ins.Action == ActionInsertBefore {
				b.WriteString(ins.Text)
			}
		}
		b.Write(source[tok.StartByte:tok.EndByte])
		for _, ins := range inserts[i] {
			if ins.Action == ActionInsertAfter {
				b.WriteString(ins.Text)
			}
		}
		prevEnd = tok.EndByte
	}
	b.Write(source[prevEnd:])
	return b.String(), nil
}

type span struct {
	addr   symbols.TokenAddress
	text   string
	action Action
}

// resolve orders edits, validates overlap rules and folds replace/delete
// edits into non-overlapping spans.
func (r *Rewriter) resolve() ([]span, map[int][]Edit, error) {
	inserts := make(map[int][]Edit)
	var ranged []Edit
	for _, e := range r.edits {
		switch e.Action {
		case ActionInsertBefore, ActionInsertAfter:
			inserts[e.Range.Start] = append(inserts[e.Range.Start], e)
		default:
			if !e.Range.Valid() || e.Range.Stop >= r.stream.Len() {
				return nil, nil, errors.Newf(errors.KindInternal,
					"edit range [%d, %d] outside token stream", e.Range.Start, e.Range.Stop)
			}
			ranged = append(ranged, e)
		}
	}

	sort.SliceStable(ranged, func(i, j int) bool {
		if ranged[i].Range.Start != ranged[j].Range.Start {
			return ranged[i].Range.Start < ranged[j].Range.Start
		}
		// Wider ranges first so containment folds inner edits away.
		if ranged[i].Range.Stop != ranged[j].Range.Stop {
			return ranged[i].Range.Stop > ranged[j].Range.Stop
		}
		return ranged[i].seq < ranged[j].seq
	})

	var spans []span
	for _, e := range ranged {
		if len(spans) > 0 {
			last := spans[len(spans)-1]
			if last.addr.Overlaps(e.Range) {
				if last.addr.Contains(e.Range) {
					// Inner edit superseded by the outer one.
					continue
				}
				if last.addr == e.Range {
					// Identical delete collapses into the earlier edit; a
					// replace of the same range supersedes an earlier delete.
					if e.Action == ActionDelete {
						continue
					}
					if last.action == ActionDelete {
						spans[len(spans)-1] = span{addr: e.Range, text: e.Text, action: e.Action}
						continue
					}
				}
				return nil, nil, errors.Newf(errors.KindInternal,
					"overlapping edits [%d, %d] and [%d, %d] are not strictly contained",
					last.addr.Start, last.addr.Stop, e.Range.Start, e.Range.Stop)
			}
		}
		spans = append(spans, span{addr: e.Range, text: e.Text, action: e.Action})
	}

	for _, perToken := range inserts {
		sort.SliceStable(perToken, func(i, j int) bool { return perToken[i].seq < perToken[j].seq })
	}
	return spans, inserts, nil
}
