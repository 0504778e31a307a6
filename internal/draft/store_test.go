package draft

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"go.uber.org/zap"
)

const serverConfig = `{
	"admin_config_write_enabled": true,
	"maze_enabled": true,
	"maze_auto_ban": false,
	"maze_auto_ban_threshold": 40,
	"pow_enabled": true,
	"pow_difficulty": 18,
	"pow_ttl_seconds": 120,
	"geo_risk": ["us", "GB"],
	"geo_block": ["RU"],
	"challenge_risk_threshold": 4,
	"botness_maze_threshold": 7,
	"botness_weights": {"js_required": 1, "geo_risk": 2}
}`

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(zap.NewNop())
	require.NoError(t, s.ApplyConfig(domain.NewSnapshot([]byte(serverConfig), time.Now())))
	return s
}

func TestDefaultsBeforeConfig(t *testing.T) {
	s := NewStore(zap.NewNop())
	maze := s.Get(SectionMaze, nil)
	assert.Equal(t, true, maze["maze_enabled"])
	assert.Equal(t, int64(50), maze["maze_auto_ban_threshold"])
	assert.Equal(t, false, maze[MutableField])

	fallback := Values{"x": 1}
	assert.Equal(t, fallback, s.Get("unknown", fallback))
}

func TestApplyConfigSetsBaselines(t *testing.T) {
	s := newStore(t)

	pow := s.Get(SectionPoW, nil)
	assert.Equal(t, int64(18), pow["pow_difficulty"])
	assert.Equal(t, true, pow[MutableField])

	geo := s.Get(SectionGeo, nil)
	assert.Equal(t, []string{"GB", "US"}, geo["geo_risk"])
	assert.Equal(t, []string{}, geo["geo_allow"])
}

func TestIsDirtyNormalization(t *testing.T) {
	s := newStore(t)

	tests := []struct {
		name    string
		section string
		current Values
		dirty   bool
	}{
		{"numeric strings equal", SectionPoW, Values{"pow_enabled": "true", "pow_difficulty": " 18 ", "pow_ttl_seconds": "120"}, false},
		{"numeric change", SectionPoW, Values{"pow_enabled": true, "pow_difficulty": 19, "pow_ttl_seconds": 120}, true},
		{"mutable ignored", SectionPoW, Values{"pow_enabled": true, "pow_difficulty": 18, "pow_ttl_seconds": 120, MutableField: false}, false},
		{"country case and order", SectionGeo, Values{"geo_risk": "gb, us,US", "geo_block": "ru"}, false},
		{"country added", SectionGeo, Values{"geo_risk": "gb,us,fr", "geo_block": "ru"}, true},
		{"json key order", SectionBotness, Values{"challenge_risk_threshold": 4, "botness_maze_threshold": "7", "botness_weights": `{"geo_risk":2,"js_required":1}`}, false},
		{"json value change", SectionBotness, Values{"challenge_risk_threshold": 4, "botness_maze_threshold": 7, "botness_weights": `{"geo_risk":3,"js_required":1}`}, true},
		{"invalid json is dirty", SectionBotness, Values{"challenge_risk_threshold": 4, "botness_maze_threshold": 7, "botness_weights": `{oops`}, true},
		{"garbage number falls back to default", SectionMaze, Values{"maze_enabled": true, "maze_auto_ban": false, "maze_auto_ban_threshold": "abc"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dirty, s.IsDirty(tt.section, tt.current))
		})
	}
}

func TestSetReplacesWholeSection(t *testing.T) {
	s := newStore(t)
	s.Set(SectionPoW, Values{"pow_difficulty": 20})

	pow := s.Get(SectionPoW, nil)
	_, hasTTL := pow["pow_ttl_seconds"]
	assert.False(t, hasTTL, "no partial merge with the previous baseline")

	// отсутствующие поля сравниваются через значения по умолчанию
	assert.False(t, s.IsDirty(SectionPoW, Values{"pow_enabled": true, "pow_difficulty": 20, "pow_ttl_seconds": 90}))
}

func TestAdvancedSectionCanonicalJSON(t *testing.T) {
	s := newStore(t)
	adv := s.Get(SectionAdvanced, nil)
	current := Values{"json": adv["json"]}
	assert.False(t, s.IsDirty(SectionAdvanced, current))

	assert.True(t, s.IsDirty(SectionAdvanced, Values{"json": `{"pow_difficulty": 1}`}))
}

func TestBindReappliesOnConfigVersion(t *testing.T) {
	st := store.New(domain.TabConfig)
	s := NewStore(zap.NewNop())
	unbind := s.Bind(st)
	defer unbind()

	st.Dispatch(store.SetSnapshot(domain.ResourceConfig, domain.NewSnapshot([]byte(serverConfig), time.Now())))
	assert.Equal(t, int64(40), s.Get(SectionMaze, nil)["maze_auto_ban_threshold"])

	wrapped := `{"config": {"maze_auto_ban_threshold": 10}}`
	st.Dispatch(store.SetSnapshot(domain.ResourceConfig, domain.NewSnapshot([]byte(wrapped), time.Now())))
	assert.Equal(t, int64(10), s.Get(SectionMaze, nil)["maze_auto_ban_threshold"])
}

func TestBindFollowsLatestConfigUnderConcurrentDispatch(t *testing.T) {
	for run := 0; run < 50; run++ {
		st := store.New(domain.TabConfig)
		s := NewStore(zap.NewNop())
		unbind := s.Bind(st)

		var wg sync.WaitGroup
		for i := 1; i <= 8; i++ {
			wg.Add(1)
			go func(threshold int) {
				defer wg.Done()
				body := fmt.Sprintf(`{"admin_config_write_enabled": true, "maze_auto_ban_threshold": %d}`, threshold)
				st.Dispatch(store.SetSnapshot(domain.ResourceConfig, domain.NewSnapshot([]byte(body), time.Now())))
			}(i * 10)
		}
		wg.Wait()
		unbind()

		var latest map[string]any
		require.NoError(t, st.GetState().Snapshot(domain.ResourceConfig).Decode(&latest))
		want := int64(latest["maze_auto_ban_threshold"].(float64))
		require.Equal(t, want, s.Get(SectionMaze, nil)["maze_auto_ban_threshold"], "run %d", run)
		assert.True(t, s.Mutable(SectionMaze))
	}
}

func TestHasSection(t *testing.T) {
	s := NewStore(zap.NewNop())
	assert.True(t, s.Has(SectionPoW))
	assert.False(t, s.Has("nosuch"))
}

func TestUnknownSectionDirty(t *testing.T) {
	s := NewStore(zap.NewNop())
	assert.True(t, s.IsDirty("custom", Values{"a": 1}))
	assert.False(t, s.IsDirty("custom", nil))

	s.Set("custom", Values{"a": 1, "b": []any{"x"}})
	assert.False(t, s.IsDirty("custom", Values{"b": []string{"x"}, "a": 1.0}))
}

func TestPatchNormalizesSection(t *testing.T) {
	s := newStore(t)
	assert.True(t, s.Mutable(SectionGeo))

	patch, err := s.Patch(SectionGeo, Values{"geo_risk": "de, us ,DE", MutableField: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"DE", "US"}, patch["geo_risk"])
	assert.Equal(t, []string{}, patch["geo_block"])
	assert.NotContains(t, patch, MutableField)

	patch, err = s.Patch(SectionBotness, Values{"botness_weights": `{"geo_risk": 3}`, "challenge_risk_threshold": "5"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"geo_risk": float64(3)}, patch["botness_weights"])
	assert.Equal(t, int64(5), patch["challenge_risk_threshold"])
}

func TestPatchAdvancedSection(t *testing.T) {
	s := newStore(t)
	patch, err := s.Patch(SectionAdvanced, Values{"json": `{"pow_difficulty": 20, "admin_config_write_enabled": true}`})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"pow_difficulty": float64(20)}, patch)

	_, err = s.Patch(SectionAdvanced, Values{"json": `not json`})
	assert.Error(t, err)
	_, err = s.Patch("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestReadOnlyBeforeConfig(t *testing.T) {
	assert.False(t, NewStore(zap.NewNop()).Mutable(SectionMaze))
}
