package transport

import (
	"context"
	"fmt"

	"github.com/developkariyer/IWApim/internal/core"
	"github.com/developkariyer/IWApim/pkg/pacing"
)

// ReportState is the lifecycle of an asynchronous export.
type ReportState int

const (
	ReportRequested ReportState = iota
	ReportPending
	ReportSuccess
	ReportFailure
)

func (s ReportState) String() string {
	switch s {
	case ReportRequested:
		return "REQUESTED"
	case ReportPending:
		return "PENDING"
	case ReportSuccess:
		return "SUCCESS"
	case ReportFailure:
		return "FAILURE"
	}
	return fmt.Sprintf("ReportState(%d)", int(s))
}

// DefaultMaxPolls bounds a report wait to about an hour at the default poll interval.
const DefaultMaxPolls = 720

// PollReport calls check on the pacer's fixed poll interval until the report leaves
// the requested/pending states. FAILURE and an exhausted poll budget are fatal.
func PollReport(ctx context.Context, pacer *pacing.Pacer, maxPolls int, check func(ctx context.Context) (ReportState, string, error)) error {
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	for i := 0; i < maxPolls; i++ {
		state, detail, err := check(ctx)
		if err != nil {
			return err
		}
		switch state {
		case ReportSuccess:
			return nil
		case ReportFailure:
			return fmt.Errorf("%w: report failed: %s", core.ErrTransport, detail)
		}
		if err := pacer.Poll(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: report not ready after %d polls", core.ErrTransport, maxPolls)
}
