package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

func waitForState(t *testing.T, m *Manager, want RunState) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st := m.Status(); st.State == want {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("manager never reached state %s, stuck at %s", want, m.Status().State)
	return Status{}
}

func TestManagerRunLifecycle(t *testing.T) {
	src := &fakeSource{rows: map[string][]core.Transaction{
		"alpha/111": {{Description: "one", Spent: core.Money{Cents: 100}, Source: core.SourceBank}},
	}}
	f := NewFetcher(src, &fakeWriter{}, nil, 1, log.New(log.DefaultConfig()))
	m := NewManager(f, Credentials{
		core.SourceBank: {"alpha": {"111": Fields{}}},
	}, time.Minute, log.New(log.DefaultConfig()))

	if st := m.Status(); st.State != StateIdle {
		t.Fatalf("initial state = %s, want idle", st.State)
	}
	if err := m.SubmitCode("123456"); !errors.Is(err, ErrNoPullWaiting) {
		t.Errorf("SubmitCode() while idle = %v, want ErrNoPullWaiting", err)
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	st := waitForState(t, m, StateDone)
	if len(st.Result.Accounts) != 1 || st.Result.Accounts[0].Rows != 1 {
		t.Errorf("result = %+v", st.Result)
	}

	// A finished manager can start again.
	if err := m.Start(); err != nil {
		t.Errorf("restart after done = %v", err)
	}
	waitForState(t, m, StateDone)
}

type blockingSource struct {
	release chan struct{}
}

func (b *blockingSource) Fetch(ctx context.Context, _ FetchRequest) ([]core.Transaction, error) {
	select {
	case <-b.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestManagerRejectsConcurrentPulls(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	f := NewFetcher(src, &fakeWriter{}, nil, 1, log.New(log.DefaultConfig()))
	m := NewManager(f, Credentials{
		core.SourceBank: {"alpha": {"111": Fields{}}},
	}, time.Minute, log.New(log.DefaultConfig()))

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.Start(); !errors.Is(err, ErrPullInProgress) {
		t.Errorf("second Start() = %v, want ErrPullInProgress", err)
	}

	close(src.release)
	waitForState(t, m, StateDone)
}

func TestManagerCancel(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	f := NewFetcher(src, &fakeWriter{}, nil, 1, log.New(log.DefaultConfig()))
	m := NewManager(f, Credentials{
		core.SourceBank: {"alpha": {"111": Fields{}}},
	}, time.Minute, log.New(log.DefaultConfig()))

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.Cancel()
	st := waitForState(t, m, StateFailed)
	if st.Error == "" {
		t.Error("cancelled run must record its error")
	}
}
