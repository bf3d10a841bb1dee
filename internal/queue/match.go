package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgalign/internal/storage"
	"github.com/OFFIS-RIT/kgalign/internal/util"
	"github.com/OFFIS-RIT/kgalign/pkg/embedding"
	"github.com/OFFIS-RIT/kgalign/pkg/leaselock"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"
	"github.com/OFFIS-RIT/kgalign/pkg/match"
	"github.com/OFFIS-RIT/kgalign/pkg/store"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidMessage marks a message that can never be processed.
var ErrInvalidMessage = errors.New("invalid match message")

// MatchMessage is the body published to MatchQueue.
type MatchMessage struct {
	RunID string `json:"run_id"`
}

// RunEvent is published to EventsExchange under run.<state>.
type RunEvent struct {
	RunID      string         `json:"run_id"`
	State      store.RunState `json:"state"`
	MappingKey string         `json:"mapping_key,omitempty"`
	Accuracy   float64        `json:"accuracy,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Locker serialises work on a key; *leaselock.Client implements it.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// MatchDeps are the collaborators of ProcessMatchMessage.
type MatchDeps struct {
	Objects storage.ObjectClient
	Runs    store.RunStorage
	Locks   Locker
	// Events is optional.
	Events Channel
	// LeaseTTL bounds how long a crashed worker blocks a run. Zero means
	// DefaultLeaseTTL.
	LeaseTTL time.Duration
}

// DefaultLeaseTTL is the run lease used when MatchDeps.LeaseTTL is zero.
const DefaultLeaseTTL = 2 * time.Minute

const uploadTries = 3

// EnqueueRun publishes a MatchMessage for runID.
func EnqueueRun(ch Channel, runID string) error {
	body, err := json.Marshal(MatchMessage{RunID: runID})
	if err != nil {
		return err
	}
	return PublishFIFO(ch, MatchQueue, body)
}

// ProcessMatchMessage runs one matching job: it fetches the run's embedding
// export, matches the blank nodes of graph A to those of graph B, stores the
// mapping file next to the export, persists the pairs and records the
// evaluation on the run.
//
// Input problems (bad CSV, non-finite or mixed dimension vectors) fail the run and return nil so
// the message is not retried. Infrastructure errors are returned.
func ProcessMatchMessage(ctx context.Context, deps MatchDeps, msg string) error {
	var data MatchMessage
	if err := json.Unmarshal([]byte(msg), &data); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if !util.IsRunID(data.RunID) {
		return fmt.Errorf("%w: run id %q", ErrInvalidMessage, data.RunID)
	}

	ttl := deps.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return deps.Locks.WithLease(ctx, leaselock.RunKey(data.RunID), leaselock.Options{TTL: ttl}, func(ctx context.Context) error {
		return processRun(ctx, deps, data.RunID)
	})
}

func processRun(ctx context.Context, deps MatchDeps, runID string) error {
	run, err := deps.Runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.State == store.RunCompleted {
		logger.Info("[Queue] Run already completed, skipping", "run", runID)
		return nil
	}
	if err := deps.Runs.UpdateRunState(ctx, runID, store.RunProcessing, ""); err != nil {
		return err
	}
	publishEvent(deps.Events, RunEvent{RunID: runID, State: store.RunProcessing})

	key, err := storage.ResolveEmbeddingsKey(ctx, deps.Objects, run.EmbeddingsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNoEmbeddings) {
			return failRun(ctx, deps, runID, err)
		}
		return err
	}
	raw, err := storage.GetFile(ctx, deps.Objects, key)
	if err != nil {
		return err
	}

	_, table, err := embedding.ReadCSV(bytes.NewReader(raw))
	if err != nil {
		return failRun(ctx, deps, runID, err)
	}
	a, b := embedding.SplitBlank(table)
	logger.Info("[Queue] Matching blank nodes", "run", runID, "a", len(a), "b", len(b))

	m, err := match.Greedy(a, b)
	if err != nil {
		return failRun(ctx, deps, runID, err)
	}
	report := mapping.Evaluate(m)

	dim := run.Dim
	if dim <= 0 {
		if dim, err = table.Dim(); err != nil {
			return failRun(ctx, deps, runID, err)
		}
	}
	mappingKey := storage.MappingKey(key, mapping.FileName(run.Model, run.Epochs, dim))

	var buf bytes.Buffer
	if err := mapping.Write(&buf, m); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return util.RetryErrWithContext(gctx, uploadTries, 500*time.Millisecond, func(ctx context.Context) error {
			_, err := storage.PutFile(ctx, deps.Objects, mappingKey, "text/plain", bytes.NewReader(buf.Bytes()))
			return err
		})
	})
	g.Go(func() error {
		if err := deps.Runs.SaveBlankEmbeddings(gctx, runID, a, b); err != nil {
			return err
		}
		return deps.Runs.SaveMapping(gctx, runID, m)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := deps.Runs.CompleteRun(ctx, runID, mappingKey, report); err != nil {
		return err
	}
	logger.Info(
		"[Queue] Run completed",
		"run", runID,
		"pairs", report.Pairs,
		"correct", report.Correct,
		"accuracy", report.Accuracy,
		"mapping", mappingKey,
	)
	publishEvent(deps.Events, RunEvent{
		RunID:      runID,
		State:      store.RunCompleted,
		MappingKey: mappingKey,
		Accuracy:   report.Accuracy,
	})
	return nil
}

func failRun(ctx context.Context, deps MatchDeps, runID string, cause error) error {
	logger.Error("[Queue] Run failed", "run", runID, "err", cause)
	if err := deps.Runs.UpdateRunState(ctx, runID, store.RunFailed, cause.Error()); err != nil {
		return err
	}
	publishEvent(deps.Events, RunEvent{RunID: runID, State: store.RunFailed, Error: cause.Error()})
	return nil
}

func publishEvent(ch Channel, ev RunEvent) {
	if ch == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("Failed to encode run event", "run", ev.RunID, "err", err)
		return
	}
	if err := PublishTopic(ch, "run."+string(ev.State), body); err != nil {
		logger.Warn("Failed to publish run event", "run", ev.RunID, "err", err)
	}
}
