// Package retry runs operations with a bounded number of attempts.
//
// The same policy object serves media downloads and account metadata fetches:
//
//	policy := retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Download.SleepInterval, log)
//	attempts, err := retry.DoCount(func() error {
//		return download(item)
//	}, policy.WithContext(ctx))
//
// Errors are classified through pkg/errors: transient fetch, item download and
// rate limit errors are retried, everything else returns immediately. A
// rate_limit error switches to the exponential RateLimitBackoff.
package retry
