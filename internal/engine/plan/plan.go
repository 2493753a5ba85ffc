package plan

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"recast/internal/core/errors"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the plan encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// Plan is the append-only result of a run.
type Plan struct {
	ID        string    `json:"id" msgpack:"id"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	// Patterns maps pattern names to their serialized rules.
	Patterns map[string]string `json:"patterns" msgpack:"patterns"`
	Issues   []*Issue          `json:"issues" msgpack:"issues"`
}

func New() *Plan {
	return &Plan{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Patterns:  make(map[string]string),
	}
}

// Add appends a recorded issue.
func (p *Plan) Add(issue *Issue) {
	p.Issues = append(p.Issues, issue)
}

// AddPattern records the serialized form of a pattern referenced by issues.
func (p *Plan) AddPattern(name, serialized string) {
	if p.Patterns == nil {
		p.Patterns = make(map[string]string)
	}
	p.Patterns[name] = serialized
}

func (p *Plan) Len() int {
	return len(p.Issues)
}

// Files returns the distinct paths that have issues, sorted.
func (p *Plan) Files() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, issue := range p.Issues {
		if _, ok := seen[issue.Location.Path]; ok {
			continue
		}
		seen[issue.Location.Path] = struct{}{}
		out = append(out, issue.Location.Path)
	}
	sort.Strings(out)
	return out
}

// ByFile groups issues by path, keeping recording order within a file.
func (p *Plan) ByFile() map[string][]*Issue {
	out := make(map[string][]*Issue)
	for _, issue := range p.Issues {
		out[issue.Location.Path] = append(out[issue.Location.Path], issue)
	}
	return out
}

// Encode writes the plan in the given format.
func (p *Plan) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(p)
	default:
		return errors.Newf(errors.CodeNotSupported, "plan format %q", format)
	}
}

// Decode reads a plan written by Encode. Decoded issues are frozen.
func Decode(r io.Reader, format Format) (*Plan, error) {
	var p Plan
	var err error
	switch format {
	case FormatJSON, "":
		err = json.NewDecoder(r).Decode(&p)
	case FormatMsgpack:
		err = msgpack.NewDecoder(r).Decode(&p)
	default:
		return nil, errors.Newf(errors.CodeNotSupported, "plan format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	for _, issue := range p.Issues {
		issue.frozen = true
	}
	return &p, nil
}

// Fingerprint hashes the issue list independent of run ID, time and issue
// IDs. Two runs over the same inputs produce the same fingerprint.
func (p *Plan) Fingerprint() uint64 {
	issues := make([]*Issue, len(p.Issues))
	copy(issues, p.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i].Location, issues[j].Location
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Range.Start != b.Range.Start {
			return a.Range.Start < b.Range.Start
		}
		return issues[i].Pattern < issues[j].Pattern
	})

	h := xxhash.New()
	var buf [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeInt(len(s))
		_, _ = h.WriteString(s)
	}
	for _, issue := range issues {
		writeStr(issue.Pattern)
		writeStr(issue.Location.Path)
		writeInt(issue.Location.Range.Start)
		writeInt(issue.Location.Range.End)
		writeStr(issue.Source)
		for _, s := range issue.Steps {
			writeStr(string(s.Kind))
			writeInt(s.Range.Start)
			writeInt(s.Range.End)
			writeStr(s.Text)
			writeStr(s.Message)
		}
	}
	return h.Sum64()
}
