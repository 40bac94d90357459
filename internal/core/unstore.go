package core

import (
	"context"
	"fmt"
	"strings"

	"tissuecore/pkg/domain"
)

// NotificationUnstoreFailure is issued when labware left the lab but could not
// be removed from the storage system.
const NotificationUnstoreFailure = "unstore_failure"

// unstoreAfter returns the post-commit step removing barcodes from storage,
// or nil when there is nothing to unstore or no storage system is configured.
// A failure is logged, reported to admins, and returned as a warning for the
// caller to surface.
func (d *deps) unstoreAfter(request, username string, barcodes []string) PostCommit {
	if len(barcodes) == 0 {
		return nil
	}
	if d.opts.unstorer == nil {
		d.opts.logger.Debugw("no storage system configured, labware left as is", "request", request, "barcodes", barcodes)
		return nil
	}
	barcodes = append([]string(nil), barcodes...)
	return func(ctx context.Context) error {
		err := d.opts.unstorer.Unstore(ctx, barcodes)
		if err == nil {
			d.opts.logger.Debugw("labware unstored", "request", request, "barcodes", barcodes)
			return nil
		}
		d.opts.logger.Warnw("unstore failed after commit", "request", request, "user", username, "barcodes", barcodes, "error", err)
		body := fmt.Sprintf("%s by %s committed, but labware %s could not be removed from storage in %%service: %v",
			request, username, domain.QuoteList(barcodes), err)
		if _, nerr := d.opts.notifier.Issue(ctx, NotificationUnstoreFailure, "Unstore failure in %service", body); nerr != nil {
			d.opts.logger.Warnw("unstore failure notification not sent", "error", nerr)
		}
		return fmt.Errorf("labware %s could not be removed from storage: %w", strings.Join(barcodes, ", "), err)
	}
}
