// Package roster applies a declared list of users to the proxy, one
// AddUser or RemoveUser call per record.
package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xtls/xray-core/app/proxyman/command"
	"github.com/xvzc/xrayctl/internal/control"
	"golang.org/x/sync/errgroup"
)

type Operation int

const (
	OpAdd Operation = iota
	OpRemove
)

func (o Operation) String() string {
	if o == OpRemove {
		return "remove"
	}

	return "add"
}

// Controller is the part of *control.Client a roster needs.
type Controller interface {
	AddUser(ctx context.Context, rec control.UserRecord) (*command.AlterInboundResponse, error)
	RemoveUser(ctx context.Context, rec control.UserRecord) (*command.AlterInboundResponse, error)
}

var _ Controller = (*control.Client)(nil)

type Status int

const (
	StatusApplied Status = iota
	// StatusUnchanged: adding a user the inbound already has.
	StatusUnchanged
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusUnchanged:
		return "unchanged"
	}

	return "failed"
}

type Outcome struct {
	Record control.UserRecord
	Err    error
}

func (o Outcome) Status() Status {
	switch {
	case o.Err == nil:
		return StatusApplied
	case errors.Is(o.Err, control.ErrAlreadyExists):
		return StatusUnchanged
	}

	return StatusFailed
}

type Summary struct {
	Applied   int
	Unchanged int
	Failed    int
}

func (s Summary) OK() bool {
	return s.Failed == 0
}

func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status() {
		case StatusApplied:
			s.Applied++
		case StatusUnchanged:
			s.Unchanged++
		default:
			s.Failed++
		}
	}

	return s
}

// Validate checks every record for op and rejects an email declared twice
// on the same inbound.
func Validate(op Operation, recs []control.UserRecord) error {
	var errs []error

	seen := make(map[[2]string]int, len(recs))
	for i, rec := range recs {
		var err error
		if op == OpRemove {
			err = rec.ValidateRemove()
		} else {
			err = rec.ValidateAdd()
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("user [%d]: %w", i, err))
		}

		key := [2]string{rec.InTag, rec.Email}
		if first, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf(
				"user [%d]: email %q already declared for inbound %q by user [%d]",
				i, rec.Email, rec.InTag, first,
			))
			continue
		}
		seen[key] = i
	}

	return errors.Join(errs...)
}

// Apply runs op for every record with at most workers calls in flight.
// A failure does not stop the other records. Outcomes keep the order of recs.
func Apply(
	ctx context.Context,
	logger zerolog.Logger,
	ctl Controller,
	op Operation,
	recs []control.UserRecord,
	workers int,
) []Outcome {
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]Outcome, len(recs))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, rec := range recs {
		g.Go(func() error {
			var err error
			if op == OpRemove {
				_, err = ctl.RemoveUser(ctx, rec)
			} else {
				_, err = ctl.AddUser(ctx, rec)
			}

			outcomes[i] = Outcome{Record: rec, Err: err}
			return nil
		})
	}

	_ = g.Wait()

	s := Summarize(outcomes)
	logger.Info().
		Str("op", op.String()).
		Int("applied", s.Applied).
		Int("unchanged", s.Unchanged).
		Int("failed", s.Failed).
		Msg("roster applied")

	return outcomes
}
