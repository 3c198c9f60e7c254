package conflict

import "strings"

const (
	markerOurs   = "<<<<<<<"
	markerBase   = "|||||||"
	markerSep    = "======="
	markerTheirs = ">>>>>>>"
)

// Markers is the parsed content of the conflict-marker blocks in a file.
// Text from every block is concatenated; the line span is that of the first
// complete block.
type Markers struct {
	Ours      string
	Theirs    string
	Base      *string
	StartLine int
	EndLine   int
}

type markerSection int

const (
	outside markerSection = iota
	inOurs
	inBase
	inTheirs
)

// ParseMarkers scans content for conflict markers. It reports false unless at
// least one block has both an opening and a closing marker line.
func ParseMarkers(content string) (Markers, bool) {
	var (
		m            Markers
		ours, theirs strings.Builder
		base         strings.Builder
		sawBase      bool
		found        bool
		section      = outside
		blockStart   int
		blockOurs    strings.Builder
		blockBase    strings.Builder
		blockTheirs  strings.Builder
		blockHasBase bool
	)

	lines := strings.SplitAfter(content, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lineNo := i + 1
		bare := strings.TrimRight(line, "\r\n")

		switch {
		case strings.HasPrefix(bare, markerOurs):
			section = inOurs
			blockStart = lineNo
			blockOurs.Reset()
			blockBase.Reset()
			blockTheirs.Reset()
			blockHasBase = false
		case section == inOurs && strings.HasPrefix(bare, markerBase):
			section = inBase
			blockHasBase = true
		case (section == inOurs || section == inBase) && bare == markerSep:
			section = inTheirs
		case section == inTheirs && strings.HasPrefix(bare, markerTheirs):
			ours.WriteString(blockOurs.String())
			theirs.WriteString(blockTheirs.String())
			if blockHasBase {
				sawBase = true
				base.WriteString(blockBase.String())
			}
			if !found {
				m.StartLine = blockStart
				m.EndLine = lineNo
				found = true
			}
			section = outside
		default:
			switch section {
			case inOurs:
				blockOurs.WriteString(line)
			case inBase:
				blockBase.WriteString(line)
			case inTheirs:
				blockTheirs.WriteString(line)
			}
		}
	}

	if !found {
		return Markers{}, false
	}
	m.Ours = ours.String()
	m.Theirs = theirs.String()
	if sawBase {
		b := base.String()
		m.Base = &b
	}
	return m, true
}
