package multipart

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"snapdl/pkg/logger"
	"snapdl/pkg/models"
	"snapdl/pkg/storage"
)

// Execution modes
const (
	ModeFFmpeg = "ffmpeg"
	ModeRaw    = "raw"
	ModeScript = "script"
)

// Policy decides how groups are reassembled
type Policy struct {
	Mode            string
	FFmpegPath      string
	RawExtensions   []string
	GenerateScripts bool
	MaxParallel     int
}

func (p Policy) rawAllowed(ext string) bool {
	for _, e := range p.RawExtensions {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

// Storage is the part of the storage manager the combiner needs
type Storage interface {
	GroupPath(account string, timestamp int64, ext string) string
	Exists(path string) bool
	Save(path string, r io.Reader) (int64, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
}

// Runner executes an external command
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil && len(out) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return err
}

// Result is the outcome of one group
type Result struct {
	Instruction Instruction
	Combined    bool
	Existing    bool
	Script      string
	Err         error
}

// Combiner reassembles story groups
type Combiner struct {
	policy   Policy
	storage  Storage
	runner   Runner
	lookPath func(string) (string, error)
	logger   logger.Logger
}

// NewCombiner creates a combiner. runner may be nil to use os/exec.
func NewCombiner(policy Policy, store Storage, runner Runner, log logger.Logger) *Combiner {
	if log == nil {
		log = logger.GetLogger()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if policy.Mode == "" {
		policy.Mode = ModeFFmpeg
	}
	if policy.FFmpegPath == "" {
		policy.FFmpegPath = "ffmpeg"
	}
	if policy.MaxParallel < 1 {
		policy.MaxParallel = 1
	}
	return &Combiner{
		policy:   policy,
		storage:  store,
		runner:   runner,
		lookPath: exec.LookPath,
		logger:   log.WithField("component", "multipart"),
	}
}

// Plan resolves the source files and the target of a group from the
// download records of the pass
func (c *Combiner) Plan(group models.StoryGroup, records []models.DownloadRecord) (Instruction, error) {
	in := Instruction{Group: group}
	if len(group.Items) == 0 {
		return in, ErrIncomplete
	}

	done := make(map[string]string, len(records))
	for _, rec := range records {
		if rec.Status == models.StatusDone {
			done[rec.Item.Key()] = rec.LocalPath
		}
	}
	for _, item := range group.Items {
		path, ok := done[item.Key()]
		if !ok || !c.storage.Exists(path) {
			return in, ErrIncomplete
		}
		in.Sources = append(in.Sources, path)
	}

	first := group.Items[0]
	in.Target = c.storage.GroupPath(first.Account, first.Timestamp, first.Extension)
	if exts := group.Extensions(); len(exts) != 1 {
		return in, fmt.Errorf("%w: %s", ErrMixedExtensions, strings.Join(exts, ", "))
	}
	return in, nil
}

// Combine reassembles every group with at least two chunks. Failures are
// reported per group; the returned error is only set when ctx ends first.
func (c *Combiner) Combine(ctx context.Context, groups []models.StoryGroup, records []models.DownloadRecord) ([]Result, error) {
	return c.each(ctx, groups, records, c.combine)
}

// WriteScripts only writes the scripts of the groups so they can be combined
// later, leaving the chunks untouched.
func (c *Combiner) WriteScripts(ctx context.Context, groups []models.StoryGroup, records []models.DownloadRecord) ([]Result, error) {
	return c.each(ctx, groups, records, func(_ context.Context, in Instruction) Result {
		return c.writeScript(in, Result{Instruction: in})
	})
}

func (c *Combiner) each(ctx context.Context, groups []models.StoryGroup, records []models.DownloadRecord, fn func(context.Context, Instruction) Result) ([]Result, error) {
	results := make([]Result, 0, len(groups))
	var plans []Instruction
	for _, group := range groups {
		if len(group.Items) < 2 {
			continue
		}
		in, err := c.Plan(group, records)
		if err != nil {
			c.logger.WithError(err).WarnWithFields("not combining story", map[string]interface{}{
				"account": group.Items[0].Account,
				"group":   group.Key,
				"chunks":  len(group.Items),
			})
			results = append(results, Result{Instruction: in, Err: err})
			continue
		}
		plans = append(plans, in)
	}

	out := make([]Result, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.policy.MaxParallel)
	for i, in := range plans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = Result{Instruction: in, Err: err}
				return err
			}
			out[i] = fn(gctx, in)
			return nil
		})
	}
	err := g.Wait()
	return append(results, out...), err
}

func (c *Combiner) combine(ctx context.Context, in Instruction) Result {
	res := Result{Instruction: in}
	if c.policy.GenerateScripts || c.policy.Mode == ModeScript {
		res = c.writeScript(in, res)
		if c.policy.Mode == ModeScript {
			return res
		}
	}

	if c.storage.Exists(in.Target) {
		res.Existing = true
		c.logger.DebugWithFields("skipping existing multipart story", map[string]interface{}{
			"target": in.Target,
		})
		return res
	}

	switch c.policy.Mode {
	case ModeRaw:
		if !c.policy.rawAllowed(in.Extension()) {
			c.logger.WarnWithFields("extension cannot be concatenated raw, writing script instead", map[string]interface{}{
				"extension": in.Extension(),
				"target":    in.Target,
			})
			return c.writeScript(in, res)
		}
		res.Err = c.concat(in)
	default:
		ffmpeg, err := c.lookPath(c.policy.FFmpegPath)
		if err != nil {
			c.logger.WithError(err).WarnWithFields("ffmpeg not available, writing script instead", map[string]interface{}{
				"ffmpeg": c.policy.FFmpegPath,
				"target": in.Target,
			})
			return c.writeScript(in, res)
		}
		res.Err = c.ffmpeg(ctx, ffmpeg, in)
	}

	if res.Err != nil {
		c.logger.WithError(res.Err).ErrorWithFields("failed to combine multipart story", map[string]interface{}{
			"target": in.Target,
		})
		return res
	}
	res.Combined = true
	c.logger.InfoWithFields("combined multipart story", map[string]interface{}{
		"target": in.Target,
		"chunks": len(in.Sources),
		"mode":   c.policy.Mode,
	})
	return res
}

// concat joins the chunk bytes into the target
func (c *Combiner) concat(in Instruction) error {
	readers := make([]io.Reader, 0, len(in.Sources))
	for _, src := range in.Sources {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		readers = append(readers, f)
	}
	_, err := c.storage.Save(in.Target, io.MultiReader(readers...))
	return err
}

// ffmpeg renders into a temporary file that is renamed once ffmpeg succeeds
func (c *Combiner) ffmpeg(ctx context.Context, bin string, in Instruction) error {
	tmp := storage.TempPath(in.Target)
	cmd := in.Command(bin, tmp)
	if err := c.runner.Run(ctx, cmd[0], cmd[1:]...); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	if err := os.Rename(tmp, in.Target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename combined story: %w", err)
	}
	return nil
}

func (c *Combiner) writeScript(in Instruction, res Result) Result {
	path := in.ScriptPath()
	if err := c.storage.WriteFile(path, []byte(in.Script(c.policy.FFmpegPath)), 0755); err != nil {
		c.logger.WithError(err).ErrorWithFields("failed to write combine script", map[string]interface{}{
			"script": path,
		})
		if res.Err == nil {
			res.Err = err
		}
		return res
	}
	res.Script = path
	c.logger.InfoWithFields("generated combine script", map[string]interface{}{
		"script": path,
	})
	return res
}
