package git

import (
	"strconv"
	"strings"
)

// EntryKind distinguishes the record types of `git status --porcelain=v2`.
type EntryKind int

const (
	EntryOrdinary EntryKind = iota
	EntryRenamed
	EntryUnmerged
	EntryUntracked
	EntryIgnored
)

// StatusEntry is one path reported by git status. Index and Worktree hold the
// X and Y status letters, with '.' meaning unmodified.
type StatusEntry struct {
	Kind     EntryKind
	Index    byte
	Worktree byte
	Path     string
	OrigPath string
}

// Conflicted reports an unmerged entry.
func (e StatusEntry) Conflicted() bool { return e.Kind == EntryUnmerged }

// Staged reports a change recorded in the index.
func (e StatusEntry) Staged() bool {
	return (e.Kind == EntryOrdinary || e.Kind == EntryRenamed) && e.Index != '.'
}

// Unstaged reports a working-tree change not yet in the index. Unmerged
// entries count here since they need work before they can be staged.
func (e StatusEntry) Unstaged() bool {
	switch e.Kind {
	case EntryUnmerged:
		return true
	case EntryOrdinary, EntryRenamed:
		return e.Worktree != '.'
	}
	return false
}

// Untracked reports a file git does not track.
func (e StatusEntry) Untracked() bool { return e.Kind == EntryUntracked }

// DeletedModified reports an unmerged entry deleted on one side and modified on the other.
func (e StatusEntry) DeletedModified() bool {
	if e.Kind != EntryUnmerged {
		return false
	}
	xy := string([]byte{e.Index, e.Worktree})
	return xy == "DU" || xy == "UD"
}

// AddedAdded reports an unmerged entry added on both sides.
func (e StatusEntry) AddedAdded() bool {
	return e.Kind == EntryUnmerged && e.Index == 'A' && e.Worktree == 'A'
}

// BranchInfo carries the `# branch.*` header lines.
type BranchInfo struct {
	OID      string
	Head     string
	Upstream string
	Ahead    int
	Behind   int
}

// Status is a parsed porcelain v2 status.
type Status struct {
	Branch  BranchInfo
	Entries []StatusEntry
}

// Counts returns staged, unstaged and untracked entry counts.
func (s *Status) Counts() (staged, unstaged, untracked int) {
	for _, e := range s.Entries {
		if e.Staged() {
			staged++
		}
		if e.Unstaged() {
			unstaged++
		}
		if e.Untracked() {
			untracked++
		}
	}
	return staged, unstaged, untracked
}

// ParseStatusPorcelainV2 parses the output of `git status --porcelain=v2 --branch`.
func ParseStatusPorcelainV2(output string) *Status {
	st := &Status{}
	for _, line := range strings.Split(output, "\n") {
		if len(line) < 2 {
			continue
		}
		switch line[0] {
		case '#':
			parseBranchHeader(&st.Branch, line)
		case '1':
			f := strings.SplitN(line, " ", 9)
			if len(f) == 9 && len(f[1]) == 2 {
				st.Entries = append(st.Entries, StatusEntry{Kind: EntryOrdinary, Index: f[1][0], Worktree: f[1][1], Path: f[8]})
			}
		case '2':
			f := strings.SplitN(line, " ", 10)
			if len(f) == 10 && len(f[1]) == 2 {
				path, orig, _ := strings.Cut(f[9], "\t")
				st.Entries = append(st.Entries, StatusEntry{Kind: EntryRenamed, Index: f[1][0], Worktree: f[1][1], Path: path, OrigPath: orig})
			}
		case 'u':
			f := strings.SplitN(line, " ", 11)
			if len(f) == 11 && len(f[1]) == 2 {
				st.Entries = append(st.Entries, StatusEntry{Kind: EntryUnmerged, Index: f[1][0], Worktree: f[1][1], Path: f[10]})
			}
		case '?':
			st.Entries = append(st.Entries, StatusEntry{Kind: EntryUntracked, Index: '?', Worktree: '?', Path: line[2:]})
		case '!':
			st.Entries = append(st.Entries, StatusEntry{Kind: EntryIgnored, Index: '!', Worktree: '!', Path: line[2:]})
		}
	}
	return st
}

func parseBranchHeader(b *BranchInfo, line string) {
	key, val, ok := strings.Cut(strings.TrimPrefix(line, "# "), " ")
	if !ok {
		return
	}
	switch key {
	case "branch.oid":
		b.OID = val
	case "branch.head":
		b.Head = val
	case "branch.upstream":
		b.Upstream = val
	case "branch.ab":
		ahead, behind, _ := strings.Cut(val, " ")
		b.Ahead, _ = strconv.Atoi(strings.TrimPrefix(ahead, "+"))
		b.Behind, _ = strconv.Atoi(strings.TrimPrefix(behind, "-"))
	}
}

// ParseUnmergedEntries parses `git ls-files --unmerged` output into the
// distinct conflicted paths, in index order.
func ParseUnmergedEntries(output string) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		_, path, ok := strings.Cut(line, "\t")
		if !ok || path == "" || seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}
