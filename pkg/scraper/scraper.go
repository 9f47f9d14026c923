package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"snapdl/internal/downloader"
	"snapdl/pkg/config"
	errs "snapdl/pkg/errors"
	"snapdl/pkg/ledger"
	"snapdl/pkg/logger"
	"snapdl/pkg/metadata"
	"snapdl/pkg/models"
	"snapdl/pkg/multipart"
	"snapdl/pkg/ratelimit"
	"snapdl/pkg/retry"
	"snapdl/pkg/snapchat"
	"snapdl/pkg/storage"
	"snapdl/pkg/ui"
)

// Scraper orchestrates the download passes
type Scraper struct {
	client       SnapClient
	storage      *storage.Manager
	ledgers      *ledger.Store
	combiner     *multipart.Combiner
	recorder     *metadata.Recorder
	console      *ui.Console
	notifier     *ui.Notifier
	config       *config.Config
	logger       logger.Logger
	itemRetry    *retry.Config
	accountRetry *retry.Config
}

// New creates a Scraper that talks to the live service
func New(cfg *config.Config, log logger.Logger) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	}
	client := snapchat.NewClient(cfg.Download.Timeout, cfg.Download.UserAgent, limiter, log)
	return NewWithClient(cfg, client, log)
}

// NewWithClient creates a Scraper around an existing client
func NewWithClient(cfg *config.Config, client SnapClient, log logger.Logger) (*Scraper, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, errs.NewConfigError("invalid timezone", err)
	}
	store, err := storage.NewManager(cfg.Output.RootFolder, loc)
	if err != nil {
		return nil, errs.NewConfigError("invalid root folder", err)
	}

	policy := multipart.Policy{
		Mode:            cfg.Multipart.Mode,
		FFmpegPath:      cfg.Multipart.FFmpegPath,
		RawExtensions:   cfg.Multipart.RawExtensions,
		GenerateScripts: cfg.Multipart.GenerateScripts,
		MaxParallel:     cfg.Multipart.MaxParallel,
	}

	return &Scraper{
		client:       client,
		storage:      store,
		ledgers:      ledger.NewStore(cfg.Output.RootFolder, log),
		combiner:     multipart.NewCombiner(policy, store, nil, log),
		recorder:     metadata.NewRecorder(store, cfg.Metadata.DumpJSON, log),
		console:      ui.Default(),
		config:       cfg,
		logger:       log.WithField("component", "scraper"),
		itemRetry:    retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Download.SleepInterval, log),
		accountRetry: retry.NewPolicy(cfg.Retry.AccountAttempts, cfg.Download.SleepInterval, log),
	}, nil
}

// SetConsole replaces the console summaries are printed to
func (s *Scraper) SetConsole(c *ui.Console) {
	s.console = c
}

// SetNotifier enables desktop notifications after passes with new media
func (s *Scraper) SetNotifier(n *ui.Notifier) {
	s.notifier = n
}

// SetCombiner replaces the multipart combiner
func (s *Scraper) SetCombiner(c *multipart.Combiner) {
	s.combiner = c
}

// Storage returns the storage manager of the root folder
func (s *Scraper) Storage() *storage.Manager {
	return s.storage
}

// RunPass processes every account once. Accounts are separated by the sleep
// interval. The returned error joins the fatal errors of the pass; other
// failures only show up in the summaries.
func (s *Scraper) RunPass(ctx context.Context, accounts []string) ([]models.PassSummary, error) {
	passID := uuid.NewString()
	log := s.logger.WithField("pass", passID)
	start := time.Now()

	logger.LogComponentStart(log, "pass", map[string]interface{}{
		"accounts": len(accounts),
	})

	var summaries []models.PassSummary
	var fatal []error
	for i, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && s.config.Download.SleepInterval > 0 {
			if err := retry.Wait(ctx, s.config.Download.SleepInterval); err != nil {
				break
			}
		}

		summary, err := s.processAccount(ctx, log, account)
		summaries = append(summaries, summary)
		if err != nil && errs.IsFatal(err) {
			fatal = append(fatal, err)
		}
	}

	reason := "completed"
	if ctx.Err() != nil {
		reason = "cancelled"
	}
	logger.LogComponentStop(log, "pass", reason)
	s.console.Completed(time.Since(start))

	if s.notifier != nil {
		s.notifier.NotifyPass(summaries)
	}
	return summaries, errors.Join(fatal...)
}

// ProcessAccount runs a single account through fetch, filter, download,
// combine and record. The error is set for fatal failures only.
func (s *Scraper) ProcessAccount(ctx context.Context, account string) (models.PassSummary, error) {
	return s.processAccount(ctx, s.logger, account)
}

func (s *Scraper) processAccount(ctx context.Context, log logger.Logger, account string) (summary models.PassSummary, err error) {
	summary.Account = account
	log = log.WithField("account", account)
	defer func() {
		if err != nil && summary.Err == nil {
			summary.Err = err
		}
		logger.LogAccountSummary(log, summary)
		s.console.AccountSummary(summary)
	}()

	l, err := s.ledgers.Load(account)
	if err != nil {
		return summary, err
	}

	accountDir := s.storage.AccountDir(account)
	if n, err := s.storage.CleanStaleTemp(accountDir); err != nil {
		log.WithError(err).Warn("failed to clean temporary files")
	} else if n > 0 {
		log.WithField("removed", n).Info("removed temporary files of an interrupted run")
	}

	categories := s.config.Categories()
	res, err := retry.DoWithResult(func() (*snapchat.Result, error) {
		return s.client.Fetch(ctx, account, categories)
	}, s.accountRetry.WithContext(ctx))
	if err != nil {
		if errs.IsNotFound(err) {
			summary.NotFound = true
			return summary, nil
		}
		summary.Err = err
		return summary, nil
	}

	for _, cat := range models.AllCategories() {
		if categories.Has(cat) {
			summary.CountFound(cat, res.Count(cat))
		}
	}

	if s.config.Metadata.DumpAccount {
		s.recorder.DumpAccount(accountDir, account, metadata.AccountDump{
			Page:        res.Page,
			UserProfile: res.UserProfile,
			Stories:     res.Stories,
			Curated:     res.Curated,
			Spotlight:   res.Spotlight,
		})
	}
	if s.config.Download.DownloadAvatars {
		s.downloadAvatars(ctx, log, account, res.Profile)
	}

	pending, dup := l.Filter(res.Items)
	summary.SkippedDuplicate = dup

	pool := downloader.NewWorkerPool(downloader.Options{
		MaxWorkers:    s.config.Download.MaxWorkers,
		SleepInterval: s.config.Download.SleepInterval,
		Fast:          s.config.Download.Fast,
		Retry:         s.itemRetry,
	}, s.client, s.storage, l, log)

	records, err := pool.Run(ctx, pending)
	for _, rec := range records {
		summary.Add(rec)
	}
	if err != nil {
		return summary, err
	}

	s.recorder.RecordAll(records, res.UserProfile)
	summary.Combined = s.combine(ctx, log, res.Items, l, records)
	return summary, nil
}

// combine reassembles the multipart stories of the account. Chunks known to
// the ledger from earlier passes take part when their files are still there.
func (s *Scraper) combine(ctx context.Context, log logger.Logger, items []models.MediaItem, l *ledger.Ledger, records []models.DownloadRecord) int {
	combine := s.config.CombineMultipart()
	if !combine && !s.config.Multipart.GenerateScripts {
		return 0
	}

	groups := multipart.Group(items)
	if len(groups) == 0 {
		return 0
	}

	all := append([]models.DownloadRecord(nil), records...)
	for _, item := range items {
		if item.IsMultipart() && l.Contains(item) {
			all = append(all, models.DownloadRecord{
				Item:      item,
				LocalPath: s.storage.Path(item),
				Status:    models.StatusDone,
				Existing:  true,
			})
		}
	}

	var results []multipart.Result
	var err error
	if combine {
		results, err = s.combiner.Combine(ctx, groups, all)
	} else {
		results, err = s.combiner.WriteScripts(ctx, groups, all)
	}
	if err != nil {
		log.WithError(err).Warn("multipart combination interrupted")
	}

	combined := 0
	for _, r := range results {
		if r.Combined {
			combined++
		}
	}
	return combined
}

// downloadAvatars stores the profile picture and the hero image once
func (s *Scraper) downloadAvatars(ctx context.Context, log logger.Logger, account string, p models.Profile) {
	images := []struct {
		url  string
		hero bool
	}{
		{p.AvatarURL, false},
		{p.HeroURL, true},
	}

	for _, img := range images {
		if img.url == "" {
			continue
		}
		path := s.storage.AvatarPath(account, p.DisplayName, img.hero)
		if s.storage.Exists(path) {
			continue
		}
		if err := s.saveURL(ctx, img.url, path); err != nil {
			log.WithError(err).WarnWithFields("failed to download profile image", map[string]interface{}{
				"path": path,
				"hero": img.hero,
			})
		}
	}
}

func (s *Scraper) saveURL(ctx context.Context, url, path string) error {
	return retry.Do(func() error {
		body, _, err := s.client.OpenMedia(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()
		if _, err := s.storage.Save(path, body); err != nil {
			if errors.Is(err, storage.ErrEmpty) {
				return nil
			}
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
		return nil
	}, s.itemRetry.WithContext(ctx))
}
