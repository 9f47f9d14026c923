// Package scraper drives download passes.
//
// A pass walks the configured accounts one after another. For each account
// it loads the dedup ledger, fetches the profile page with the account retry
// policy, filters out items the ledger already knows, hands the rest to the
// download pool, reassembles multipart stories and writes metadata sidecars.
//
// Item and account failures are counted in the PassSummary and never stop a
// pass. Ledger failures abort the account and are reported as fatal once the
// pass is over.
//
// Updater repeats passes at a fixed interval:
//
//	s, err := scraper.New(cfg, log)
//	if err != nil {
//	    return err
//	}
//	u := scraper.NewUpdater(func(ctx context.Context) error {
//	    _, err := s.RunPass(ctx, accounts)
//	    return err
//	}, scraper.UpdaterOptions{Enabled: true, Interval: 10 * time.Minute}, log)
//	return u.Run(ctx)
package scraper
