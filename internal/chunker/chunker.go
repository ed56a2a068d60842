package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"safeon/internal/normalize"
	"safeon/internal/precedent"

	"github.com/google/uuid"
)

const (
	DefaultSize    = 1200
	DefaultOverlap = 150
	// MinChars is the length below which a text is never split, whatever
	// the window size.
	MinChars = 200
)

// ErrOverlap is returned when the window would never advance.
var ErrOverlap = errors.New("chunker: overlap must be smaller than chunk size")

// Options configures the sliding window. Zero values select the defaults;
// a negative Overlap disables overlap.
type Options struct {
	Size    int
	Overlap int
}

func (o Options) withDefaults() Options {
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	if o.Overlap == 0 {
		o.Overlap = DefaultOverlap
	}
	return o
}

// Validate reports whether the options, after defaults, describe a window
// that advances.
func (o Options) Validate() error {
	o = o.withDefaults()
	if o.Size <= 0 {
		return fmt.Errorf("chunker: chunk size must be positive, got %d", o.Size)
	}
	if o.Overlap >= o.Size {
		return fmt.Errorf("%w (size=%d overlap=%d)", ErrOverlap, o.Size, o.Overlap)
	}
	return nil
}

// Metadata is the subset of the parent record copied onto each chunk.
type Metadata struct {
	PrecID          string `json:"prec_id,omitempty"`
	CaseNo          string `json:"case_no,omitempty"`
	CaseName        string `json:"case_name,omitempty"`
	Court           string `json:"court,omitempty"`
	DecisionDate    string `json:"decision_date,omitempty"`
	DecisionDateISO string `json:"decision_date_iso,omitempty"`
	Source          string `json:"source,omitempty"`
}

// Chunk is a window of a parent record's text.
type Chunk struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	Index    int      `json:"chunk_index"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Split normalizes whitespace and cuts text into windows of size runes,
// each starting size-overlap runes after the previous one. The last window
// ends at the end of the text. Texts no longer than max(size, MinChars)
// are returned whole; an empty text yields no chunks.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: chunk size must be positive, got %d", size)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w (size=%d overlap=%d)", ErrOverlap, size, overlap)
	}
	text = normalize.NormalizeWhitespace(text)
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}
	if n <= max(size, MinChars) {
		return []string{text}, nil
	}

	var out []string
	for i := 0; i < n; {
		j := min(i+size, n)
		out = append(out, string(runes[i:j]))
		if j == n {
			break
		}
		if overlap > 0 {
			i = j - overlap
		} else {
			i = j
		}
	}
	return out, nil
}

// ChunkID derives a chunk identifier from its parent and position. It is a
// version 5 UUID in the URL namespace, so reruns produce the same ids.
func ChunkID(parentID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(parentID+"#"+strconv.Itoa(index))).String()
}

// ChunkPrecedent splits a record's text and attaches identity and
// metadata. Records with empty text produce no chunks.
func ChunkPrecedent(p precedent.Precedent, opts Options) ([]Chunk, error) {
	opts = opts.withDefaults()
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return nil, nil
	}
	parts, err := Split(text, opts.Size, opts.Overlap)
	if err != nil {
		return nil, err
	}

	parentID := p.ID
	if parentID == "" {
		parentID = precedent.RecordID(p.PrecID)
	}
	meta := Metadata{
		PrecID:          p.PrecID,
		CaseNo:          p.CaseNo,
		CaseName:        p.CaseName,
		Court:           p.Court,
		DecisionDate:    p.DecisionDate,
		DecisionDateISO: p.DecisionDateISO,
		Source:          p.Source,
	}
	chunks := make([]Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = Chunk{
			ID:       ChunkID(parentID, i),
			ParentID: parentID,
			Index:    i,
			Text:     part,
			Metadata: meta,
		}
	}
	return chunks, nil
}

// EmbedText prefixes a chunk with its case header so the vector carries
// the case identity as well as the window content.
func EmbedText(c Chunk) string {
	var b strings.Builder
	m := c.Metadata
	if m.CaseName != "" {
		fmt.Fprintf(&b, "사건명: %s\n", m.CaseName)
	}
	if m.CaseNo != "" || m.Court != "" {
		fmt.Fprintf(&b, "사건번호: %s %s\n", m.CaseNo, m.Court)
	}
	if d := m.DecisionDateISO; d != "" {
		fmt.Fprintf(&b, "선고일: %s\n", d)
	}
	b.WriteString(c.Text)
	return b.String()
}
