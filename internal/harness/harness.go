package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/billbook/internal/engine"
	"github.com/roach88/billbook/internal/fieldmap"
	"github.com/roach88/billbook/internal/record"
	"github.com/roach88/billbook/internal/remote"
	"github.com/roach88/billbook/internal/store"
)

// DefaultUser is the account a scenario syncs for when it names none.
const DefaultUser = "user-1"

type runner struct {
	sc     *Scenario
	user   string
	cache  *store.Store
	mem    *remote.Memory
	ids    *engine.FixedGenerator
	used   int
	engine *engine.Engine
	logger *slog.Logger
	result *Result
}

// Run executes a scenario with a fresh cache and backend.
//
// Failed expectations and assertions are reported in the Result. The error
// is reserved for setup problems: an unreadable seed or a cache that cannot
// be opened.
func Run(s *Scenario) (*Result, error) {
	return RunContext(context.Background(), s)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, s *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "billbook-harness-*")
	if err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cache, err := store.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()

	user := s.User
	if user == "" {
		user = DefaultUser
	}

	mem := remote.NewMemory()
	for name, rows := range s.Seed {
		c, _ := record.ParseCollection(name)
		objs := make([]record.Object, len(rows))
		for i, row := range rows {
			obj, err := record.ObjectFromMap(row)
			if err != nil {
				return nil, fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
			objs[i] = obj
		}
		mem.Seed(user, c, objs)
	}

	r := &runner{
		sc:     s,
		user:   user,
		cache:  cache,
		mem:    mem,
		ids:    engine.NewFixedGenerator(s.IDs...),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		result: NewResult(),
	}
	if err := r.open(ctx); err != nil {
		return nil, err
	}
	defer func() { r.engine.Stop() }()

	for i, step := range s.Steps {
		ev, err := r.exec(ctx, step)
		ev.Step = i + 1
		ev.Op = step.Op
		if err != nil {
			ev.Err = err.Error()
		}
		r.result.AddTrace(ev)
		r.checkExpect(i, step, ev, err)
		r.checkInvariants(i)
	}

	view, err := r.view(ctx)
	if err != nil {
		return nil, err
	}
	r.result.State = view.State
	r.result.Outbox = view.Outbox

	for _, err := range evaluateAssertions(s.Assertions, view) {
		r.result.AddError(err.Error())
	}
	return r.result, nil
}

// open builds an engine over the shared cache and backend and hydrates it,
// as the app does on start.
func (r *runner) open(ctx context.Context) error {
	e, err := engine.New(ctx, r.user, r.cache, r.mem,
		engine.WithIDGenerator(r.ids),
		engine.WithLogger(r.logger),
	)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	if err := e.Hydrate(ctx); err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	r.engine = e
	return nil
}

func (r *runner) exec(ctx context.Context, st Step) (TraceEvent, error) {
	ev := TraceEvent{Collection: st.Collection, ID: st.ID}
	c, _ := record.ParseCollection(st.Collection)

	switch st.Op {
	case OpLoad:
		rep, err := r.engine.Load(ctx)
		if err != nil {
			return ev, err
		}
		failed := make([]string, 0, len(rep.Failed))
		for fc := range rep.Failed {
			failed = append(failed, string(fc))
		}
		sort.Strings(failed)
		ev.Load = &LoadOutcome{Replayed: rep.Replayed, Dropped: rep.Dropped, Pending: rep.Pending, Failed: failed}
		return ev, nil

	case OpRestart:
		r.engine.Stop()
		return ev, r.open(ctx)

	case OpSave:
		rec, err := r.object(c, st.Record)
		if err != nil {
			return ev, err
		}
		if rec.ID() == "" {
			if r.used >= len(r.sc.IDs) {
				return ev, fmt.Errorf("no ids left for save (declare more under ids)")
			}
			r.used++
		}
		res, err := r.engine.Save(ctx, c, rec)
		if err != nil {
			return ev, err
		}
		ev.ID = res.Record.ID()
		ev.Queued = &res.Queued
		return ev, nil

	case OpUpdate:
		patch, err := r.object(c, st.Record)
		if err != nil {
			return ev, err
		}
		res, err := r.engine.Update(ctx, c, st.ID, patch)
		if err != nil {
			return ev, err
		}
		ev.Queued = &res.Queued
		return ev, nil

	case OpDelete:
		res, err := r.engine.Delete(ctx, c, st.ID)
		if err != nil {
			return ev, err
		}
		ev.Queued = &res.Queued
		return ev, nil

	case OpOffline:
		r.mem.SetOffline(true)
	case OpOnline:
		r.mem.SetOffline(false)
	case OpFailFetch:
		r.mem.FailFetch(c, remote.ErrUnavailable)
	case OpRestoreFetch:
		r.mem.FailFetch(c, nil)

	case OpRemoteDelete:
		rows := r.mem.Rows(r.user, c)
		kept := rows[:0]
		for _, row := range rows {
			if row.ID() != st.ID {
				kept = append(kept, row)
			}
		}
		if len(kept) == len(rows) {
			return ev, fmt.Errorf("remote has no %s %s", c, st.ID)
		}
		r.mem.Seed(r.user, c, kept)

	case OpPatch:
		ev.Action = st.Action
		rec, err := record.ObjectFromMap(orEmpty(st.Record))
		if err != nil {
			return ev, err
		}
		r.engine.Enqueue(remote.Patch{
			Collection: c,
			Action:     record.Action(st.Action),
			ID:         st.ID,
			UserID:     r.user,
			Record:     rec,
		})
		r.engine.Drain()
	}
	return ev, nil
}

// object converts a step record into internal field names.
func (r *runner) object(c record.Collection, m map[string]any) (record.Object, error) {
	obj, err := record.ObjectFromMap(orEmpty(m))
	if err != nil {
		return nil, err
	}
	return fieldmap.Normalize(c, obj), nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (r *runner) checkExpect(i int, st Step, ev TraceEvent, err error) {
	exp := st.Expect
	if exp == nil || exp.Error == "" {
		if err != nil {
			r.result.AddError(fmt.Sprintf("steps[%d] (%s): unexpected error: %v", i, st.Op, err))
			return
		}
	} else {
		switch {
		case err == nil:
			r.result.AddError(fmt.Sprintf("steps[%d] (%s): expected error containing %q, got success", i, st.Op, exp.Error))
		case !strings.Contains(err.Error(), exp.Error):
			r.result.AddError(fmt.Sprintf("steps[%d] (%s): expected error containing %q, got %q", i, st.Op, exp.Error, err))
		}
		return
	}
	if exp == nil {
		return
	}

	if exp.Queued != nil && (ev.Queued == nil || *ev.Queued != *exp.Queued) {
		r.result.AddError(fmt.Sprintf("steps[%d] (%s): expected queued=%t", i, st.Op, *exp.Queued))
	}

	wantsLoad := exp.Replayed != nil || exp.Dropped != nil || exp.Pending != nil || exp.Failed != nil
	if !wantsLoad {
		return
	}
	if ev.Load == nil {
		r.result.AddError(fmt.Sprintf("steps[%d] (%s): load expectations on a non-load step", i, st.Op))
		return
	}
	checkCount := func(name string, want *int, got int) {
		if want != nil && *want != got {
			r.result.AddError(fmt.Sprintf("steps[%d] (load): expected %s=%d, got %d", i, name, *want, got))
		}
	}
	checkCount("replayed", exp.Replayed, ev.Load.Replayed)
	checkCount("dropped", exp.Dropped, ev.Load.Dropped)
	checkCount("pending", exp.Pending, ev.Load.Pending)
	if exp.Failed != nil {
		want := append([]string(nil), exp.Failed...)
		sort.Strings(want)
		if strings.Join(want, ",") != strings.Join(ev.Load.Failed, ",") {
			r.result.AddError(fmt.Sprintf("steps[%d] (load): expected failed=%v, got %v", i, want, ev.Load.Failed))
		}
	}
}

// checkInvariants verifies that no collection holds an id twice.
func (r *runner) checkInvariants(i int) {
	snap := r.engine.State().Snapshot()
	for _, c := range record.Collections {
		seen := make(map[string]bool)
		for _, row := range snap.Get(c) {
			id := row.ID()
			if seen[id] {
				r.result.AddError(fmt.Sprintf("steps[%d]: %s holds id %q twice", i, c, id))
			}
			seen[id] = true
		}
	}
}

func (r *runner) view(ctx context.Context) (View, error) {
	v := View{
		State:  make(map[record.Collection][]record.Object),
		Remote: make(map[record.Collection][]record.Object),
	}
	snap := r.engine.State().Snapshot()
	for _, c := range record.Collections {
		if rows := snap.Get(c); len(rows) > 0 {
			v.State[c] = record.CloneAll(rows)
		}
		if rows := r.mem.Rows(r.user, c); len(rows) > 0 {
			v.Remote[c] = fieldmap.NormalizeAll(c, rows)
		}
	}

	outbox, err := r.engine.Pending(ctx)
	if err != nil {
		return v, fmt.Errorf("read outbox: %w", err)
	}
	v.Outbox = outbox
	return v, nil
}
