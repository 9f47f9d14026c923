// Package ui prints the user facing output of snapdl: the banner, per
// account summaries and desktop notifications. Diagnostics go through
// pkg/logger instead.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"snapdl/pkg/models"
)

// Console writes styled lines. Quiet consoles print failures only; automated
// consoles skip lines that report nothing new.
type Console struct {
	mu        sync.Mutex
	out       io.Writer
	styles    Styles
	quiet     bool
	automated bool
}

// NewConsole creates a console writing to out
func NewConsole(out io.Writer, quiet, automated bool) *Console {
	return &Console{
		out:       out,
		styles:    NewStyles(out),
		quiet:     quiet,
		automated: automated,
	}
}

var (
	defaultMu      sync.RWMutex
	defaultConsole = NewConsole(os.Stdout, false, false)
)

// SetDefault replaces the console used by the package level helpers
func SetDefault(c *Console) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultConsole = c
}

// Default returns the console used by the package level helpers
func Default() *Console {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultConsole
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Banner prints the application banner
func (c *Console) Banner(version string) {
	if c.quiet || c.automated {
		return
	}
	c.println(c.styles.Banner.Render("snapdl " + version + "\npublic story downloader"))
}

// Info prints a label and its value
func (c *Console) Info(label, value string) {
	if c.quiet {
		return
	}
	c.println(c.styles.Label.Render(label+":") + " " + c.styles.Value.Render(value))
}

// Success prints a success message
func (c *Console) Success(msg string) {
	if c.quiet {
		return
	}
	c.println(c.styles.Success.Render(msg))
}

// Warning prints a warning
func (c *Console) Warning(msg string) {
	if c.quiet {
		return
	}
	c.println(c.styles.Warning.Render(msg))
}

// Error prints an error. Errors are shown in quiet mode too.
func (c *Console) Error(msg string, err error) {
	if err != nil {
		msg += ": " + err.Error()
	}
	c.println(c.styles.Error.Render("[x] " + msg))
}

// AccountSummary prints one line per category plus a failure line
func (c *Console) AccountSummary(s models.PassSummary) {
	account := c.styles.Account.Render(s.Account)
	if s.NotFound {
		c.println(c.styles.Error.Render("[x] ") + account + c.styles.Error.Render(" is not a valid user"))
		return
	}
	if s.Err != nil {
		c.Error(fmt.Sprintf("Unable to process %s", s.Account), s.Err)
		return
	}

	for _, cat := range models.AllCategories() {
		cc, ok := s.Categories[cat]
		if !ok {
			continue
		}
		if c.quiet {
			continue
		}
		if cc.Found == 0 {
			if !c.automated {
				c.println(c.styles.Dim.Render("[-] ") + account + c.styles.Dim.Render(" has no "+cat.Noun()))
			}
			continue
		}
		msg := fmt.Sprintf("%d %s downloaded (%d) or existing (%d) for ", cc.Found, cat.Noun(), cc.Downloaded, cc.Found-cc.Downloaded)
		if cc.Downloaded > 0 {
			c.println(c.styles.Success.Render("[✔] "+msg) + account)
		} else if !c.automated {
			c.println(c.styles.Dim.Render("[-] "+msg) + account)
		}
	}

	if s.Failed > 0 {
		c.println(c.styles.Error.Render(fmt.Sprintf("[x] %d items failed for ", s.Failed)) + account)
	}
	if s.Combined > 0 && !c.quiet {
		c.println(c.styles.Success.Render(fmt.Sprintf("[✔] %d multipart stories combined for ", s.Combined)) + account)
	}
}

// Completed prints the elapsed time of a pass
func (c *Console) Completed(elapsed time.Duration) {
	if c.quiet {
		return
	}
	c.println(c.styles.Success.Render("Completed in ") + c.styles.Label.Render(FormatDuration(elapsed)))
}

// FormatDuration renders elapsed time the way the summary shows it
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%.1f seconds", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	default:
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
}

// JoinAccounts renders account names for one-line messages
func JoinAccounts(accounts []string, max int) string {
	if max > 0 && len(accounts) > max {
		return strings.Join(accounts[:max], ", ") + fmt.Sprintf(" and %d more", len(accounts)-max)
	}
	return strings.Join(accounts, ", ")
}

// Package level helpers

func PrintBanner(version string)               { Default().Banner(version) }
func PrintInfo(label, value string)            { Default().Info(label, value) }
func PrintSuccess(msg string)                  { Default().Success(msg) }
func PrintWarning(msg string)                  { Default().Warning(msg) }
func PrintError(msg string, err error)         { Default().Error(msg, err) }
func PrintAccountSummary(s models.PassSummary) { Default().AccountSummary(s) }
func PrintCompleted(elapsed time.Duration)     { Default().Completed(elapsed) }
