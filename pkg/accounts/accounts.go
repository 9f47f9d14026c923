// Package accounts collects the account names a run works on: command line
// arguments, batch files, the folders of an existing root folder and story
// links copied to the clipboard.
package accounts

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var (
	usernamePattern  = regexp.MustCompile(`^[\-\w\.]{3,15}$`)
	storyLinkPattern = regexp.MustCompile(`https?://(?:story|www)\.snapchat\.com/(?:[suad]+/|@)([\-\w\.]{3,15})`)
)

// ValidateUsername reports whether name is a well-formed account name
func ValidateUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// SearchUsernames returns the sorted, unique account names of the story
// links found in text
func SearchUsernames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range storyLinkPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if ValidateUsername(name) && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// FromBatchFile reads one account name per line. Blank and invalid lines are
// ignored.
func FromBatchFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if ValidateUsername(name) {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return Merge(names), nil
}

// FromRootFolder returns the sorted names of the account folders below root
func FromRootFolder(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan root folder: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if ValidateUsername(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Merge concatenates lists and drops duplicates, keeping first occurrences in order
func Merge(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
