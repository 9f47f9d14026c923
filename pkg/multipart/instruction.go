package multipart

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"snapdl/pkg/models"
)

var (
	// ErrMixedExtensions means the chunks of a group cannot be concatenated
	ErrMixedExtensions = errors.New("chunks have mixed extensions")
	// ErrIncomplete means at least one chunk of a group is not on disk
	ErrIncomplete = errors.New("group has chunks that were not downloaded")
)

// Instruction describes how one group is reassembled
type Instruction struct {
	Group   models.StoryGroup
	Sources []string
	Target  string
}

// Extension is the extension shared by every chunk
func (in Instruction) Extension() string {
	return strings.TrimPrefix(filepath.Ext(in.Target), ".")
}

// Command returns the ffmpeg invocation writing to output
func (in Instruction) Command(ffmpeg, output string) []string {
	cmd := []string{ffmpeg}
	for _, src := range in.Sources {
		cmd = append(cmd, "-i", src)
	}
	return append(cmd,
		"-y", "-loglevel", "quiet",
		"-filter_complex", fmt.Sprintf("concat=n=%d", len(in.Sources)),
		output,
	)
}

// ScriptPath is where the shell script of the instruction is written
func (in Instruction) ScriptPath() string {
	return strings.TrimSuffix(in.Target, filepath.Ext(in.Target)) + ".sh"
}

// Script renders the instruction as an executable bash script
func (in Instruction) Script(ffmpeg string) string {
	return "#!/usr/bin/env bash\n\n" + shellescape.QuoteCommand(in.Command(ffmpeg, in.Target)) + "\n"
}
