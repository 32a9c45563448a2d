package orchestrator

import (
	"context"

	"github.com/local/sheetpress/internal/store"
)

type redisStatusAdapter struct{ s *store.RedisStatus }

// NewStatusAdapter bridges the Redis status store to the API's view.
func NewStatusAdapter(s *store.RedisStatus) StatusStore { return &redisStatusAdapter{s: s} }

func (a *redisStatusAdapter) Set(ctx context.Context, jobID string, st Status) error {
	return a.s.Set(ctx, jobID, store.Status{
		Status:   st.Status,
		Phase:    st.Phase,
		Progress: st.Progress,
		Message:  st.Message,
		Archive:  st.Archive,
		Start:    st.Start,
		End:      st.End,
		Metadata: st.Metadata,
	})
}

func (a *redisStatusAdapter) Get(ctx context.Context, jobID string) (Status, bool, error) {
	st, ok, err := a.s.Get(ctx, jobID)
	if !ok || err != nil {
		return Status{}, ok, err
	}
	return Status{
		Status:   st.Status,
		Phase:    st.Phase,
		Progress: st.Progress,
		Message:  st.Message,
		Archive:  st.Archive,
		Start:    st.Start,
		End:      st.End,
		Metadata: st.Metadata,
	}, true, nil
}
