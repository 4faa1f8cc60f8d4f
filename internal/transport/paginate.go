package transport

import (
	"context"
	"fmt"

	"github.com/developkariyer/IWApim/internal/core"
)

// ByToken follows a continuation token until fetch returns "".
// A repeated token is treated as malformed paging.
func ByToken(ctx context.Context, first string, fetch func(ctx context.Context, token string) (string, error)) error {
	seen := map[string]struct{}{}
	token := first
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := fetch(ctx, token)
		if err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		if _, dup := seen[next]; dup {
			return fmt.Errorf("%w: continuation token %q repeated", core.ErrData, next)
		}
		seen[next] = struct{}{}
		token = next
	}
}

// ByOffset walks offset/limit pages. fetch returns the rows on the page and the
// total when the marketplace reports one (negative when unknown).
func ByOffset(ctx context.Context, limit int, fetch func(ctx context.Context, offset, limit int) (int, int, error)) error {
	if limit <= 0 {
		return fmt.Errorf("page limit must be positive, got %d", limit)
	}
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, total, err := fetch(ctx, offset, limit)
		if err != nil {
			return err
		}
		offset += n
		if n < limit {
			return nil
		}
		if total >= 0 && offset >= total {
			return nil
		}
	}
}

// ByPage walks numbered pages from start. fetch reports the rows on the page
// and whether the marketplace marked it as the last one.
func ByPage(ctx context.Context, start, size int, fetch func(ctx context.Context, page int) (int, bool, error)) error {
	if size <= 0 {
		return fmt.Errorf("page size must be positive, got %d", size)
	}
	for page := start; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, last, err := fetch(ctx, page)
		if err != nil {
			return err
		}
		if last || n < size {
			return nil
		}
	}
}
