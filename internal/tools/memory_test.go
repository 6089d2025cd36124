package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunabot-ai/lunabot/internal/memory"
)

// stubStore is an in-memory memory.Store for tool tests.
type stubStore struct {
	entries map[string][]memory.Entry // namespace -> entries
}

func newStubStore() *stubStore {
	return &stubStore{entries: make(map[string][]memory.Entry)}
}

func (s *stubStore) Store(_ context.Context, namespace, content string, _ map[string]any) (string, error) {
	id := uuid.NewString()
	s.entries[namespace] = append(s.entries[namespace], memory.Entry{ID: id, Content: content, Score: 0.9})
	return id, nil
}

func (s *stubStore) Search(_ context.Context, namespace, query string, limit int) ([]memory.Entry, error) {
	var out []memory.Entry
	for _, e := range s.entries[namespace] {
		if query == "" || strings.Contains(strings.ToLower(e.Content), strings.ToLower(query)) {
			out = append(out, e)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) Get(_ context.Context, id string) (*memory.Entry, error) {
	for _, list := range s.entries {
		for _, e := range list {
			if e.ID == id {
				return &e, nil
			}
		}
	}
	return nil, nil
}

func (s *stubStore) Update(_ context.Context, _, _ string, _ map[string]any) error { return nil }

func (s *stubStore) Delete(_ context.Context, id string) (bool, error) {
	for ns, list := range s.entries {
		for i, e := range list {
			if e.ID == id {
				s.entries[ns] = append(list[:i], list[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *stubStore) List(ctx context.Context, namespace string, limit int) ([]memory.Entry, error) {
	return s.Search(ctx, namespace, "", limit)
}

func (s *stubStore) Health(_ context.Context) bool { return true }

func TestStoreThenSearchMemories(t *testing.T) {
	store := newStubStore()
	ctx := context.Background()

	st := &StoreMemoryTool{Store: store, Namespace: "bot-a"}
	out, err := st.Execute(ctx, map[string]any{"content": "X", "user_id": "u1"})
	require.NoError(t, err)
	assert.Contains(t, out, "Memory stored")

	search := &SearchMemoriesTool{Store: store, Namespace: "bot-a"}
	out, err = search.Execute(ctx, map[string]any{"query": "X", "user_id": "u1"})
	require.NoError(t, err)
	assert.Contains(t, out, "X")

	// Another user's scope sees nothing.
	out, err = search.Execute(ctx, map[string]any{"query": "X", "user_id": "u2"})
	require.NoError(t, err)
	assert.Contains(t, out, "No matching memories")
}

func TestSearchMemories_BotNamespaceIsolation(t *testing.T) {
	store := newStubStore()
	ctx := context.Background()

	st := &StoreMemoryTool{Store: store, Namespace: "bot-a"}
	_, err := st.Execute(ctx, map[string]any{"content": "alpha secret"})
	require.NoError(t, err)

	search := &SearchMemoriesTool{Store: store, Namespace: "bot-b"}
	out, err := search.Execute(ctx, map[string]any{"query": "alpha"})
	require.NoError(t, err)
	assert.Contains(t, out, "No matching memories")
}

func TestStoreMemory_EmptyContent(t *testing.T) {
	st := &StoreMemoryTool{Store: newStubStore(), Namespace: "bot-a"}
	_, err := st.Execute(context.Background(), map[string]any{"content": "   "})
	require.Error(t, err)
}

func TestListAndDeleteMemories(t *testing.T) {
	store := newStubStore()
	ctx := context.Background()

	id, err := store.Store(ctx, "bot-a", "keep me", nil)
	require.NoError(t, err)

	list := &ListMemoriesTool{Store: store, Namespace: "bot-a"}
	out, err := list.Execute(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, out, "keep me")

	del := &DeleteMemoryTool{Store: store}
	out, err = del.Execute(ctx, map[string]any{"memory_id": id})
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	out, err = del.Execute(ctx, map[string]any{"memory_id": id})
	require.NoError(t, err)
	assert.Contains(t, out, "not found")
}
