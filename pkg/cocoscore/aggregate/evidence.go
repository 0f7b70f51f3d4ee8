package aggregate

import (
	"sort"

	"github.com/cognicore/cocoscore/pkg/cocoscore/ingest"
)

// paragraphEvidence holds what is known about a pair inside one paragraph.
// sentences maps a sentence index to the best signal seen there: a
// confidence score, or 1 for bare presence.
type paragraphEvidence struct {
	sentences map[int]float64
}

// documentEvidence holds a pair's paragraphs within one document. A document
// without paragraphs was observed at document level only.
type documentEvidence struct {
	paragraphs map[int]*paragraphEvidence
}

// pairEvidence is the document → paragraph → sentence tree of one pair.
type pairEvidence struct {
	documents map[string]*documentEvidence
}

func newPairEvidence() *pairEvidence {
	return &pairEvidence{documents: make(map[string]*documentEvidence)}
}

func (e *pairEvidence) document(id string) *documentEvidence {
	d, ok := e.documents[id]
	if !ok {
		d = &documentEvidence{paragraphs: make(map[int]*paragraphEvidence)}
		e.documents[id] = d
	}
	return d
}

func (d *documentEvidence) paragraph(idx int) *paragraphEvidence {
	p, ok := d.paragraphs[idx]
	if !ok {
		p = &paragraphEvidence{sentences: make(map[int]float64)}
		d.paragraphs[idx] = p
	}
	return p
}

// add records evidence at the finest granularity loc carries. Repeated
// sentence evidence keeps the highest signal.
func (e *pairEvidence) add(loc ingest.Location, signal float64) {
	d := e.document(loc.Document)
	if !loc.HasParagraph() {
		return
	}
	p := d.paragraph(loc.Paragraph)
	if !loc.HasSentence() {
		return
	}
	if prev, ok := p.sentences[loc.Sentence]; !ok || signal > prev {
		p.sentences[loc.Sentence] = signal
	}
}

// weights applies granularity weights while folding the evidence tree.
type weights struct {
	document, paragraph, sentence float64
	ignoreScores                  bool
}

func (w weights) sentenceValue(signal float64) float64 {
	if w.ignoreScores {
		return w.sentence
	}
	return w.sentence * signal
}

// paragraphValue is the paragraph weight plus its best sentence.
func (w weights) paragraphValue(p *paragraphEvidence) float64 {
	best := 0.0
	for _, signal := range p.sentences {
		if v := w.sentenceValue(signal); v > best {
			best = v
		}
	}
	return w.paragraph + best
}

// documentValue is the document weight plus its best paragraph.
func (w weights) documentValue(d *documentEvidence) float64 {
	best := 0.0
	for _, p := range d.paragraphs {
		if v := w.paragraphValue(p); v > best {
			best = v
		}
	}
	return w.document + best
}

// pool sums one max-pooled term per document, in document order so the
// float sum does not depend on map iteration.
func (w weights) pool(e *pairEvidence) float64 {
	ids := make([]string, 0, len(e.documents))
	for id := range e.documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := 0.0
	for _, id := range ids {
		total += w.documentValue(e.documents[id])
	}
	return total
}
