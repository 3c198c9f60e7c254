package tracker

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

var licenseFiles = []string{
	"LICENSE", "LICENSE.md", "LICENSE.txt", "LICENCE", "COPYING", "COPYING.md", "COPYING.txt",
}

// licenseMarkers are checked in order against each line; more specific
// phrases come first.
var licenseMarkers = []struct {
	phrase string
	name   string
}{
	{"GNU AFFERO GENERAL PUBLIC LICENSE", "AGPL-3.0"},
	{"GNU LESSER GENERAL PUBLIC LICENSE", "LGPL"},
	{"GNU GENERAL PUBLIC LICENSE", "GPL"},
	{"Apache License", "Apache-2.0"},
	{"Mozilla Public License", "MPL-2.0"},
	{"MIT License", "MIT"},
	{"Permission is hereby granted, free of charge", "MIT"},
	{"BSD 3-Clause", "BSD-3-Clause"},
	{"BSD 2-Clause", "BSD-2-Clause"},
	{"ISC License", "ISC"},
	{"The Unlicense", "Unlicense"},
	{"This is free and unencumbered software", "Unlicense"},
}

// DetectLicense names the license in root's LICENSE or COPYING file. When no
// known phrase appears in the first lines, the first non-empty line is used.
// It returns "" when there is no license file.
func DetectLicense(root string) string {
	for _, name := range licenseFiles {
		f, err := os.Open(filepath.Join(root, name))
		if err != nil {
			continue
		}
		defer f.Close()

		first := ""
		sc := bufio.NewScanner(f)
		for n := 0; n < 30 && sc.Scan(); n++ {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if first == "" {
				first = line
			}
			for _, m := range licenseMarkers {
				if strings.Contains(strings.ToLower(line), strings.ToLower(m.phrase)) {
					return m.name
				}
			}
		}
		return first
	}
	return ""
}
