package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityKey(t *testing.T) {
	assert.Equal(t, "mkt:v1:listing:42", EntityKey("listing", "42"))
	assert.Equal(t, "mkt:v1:profile:u-7", EntityKey("profile", "u-7"))
}

func TestListKey(t *testing.T) {
	assert.Equal(t, "mkt:v1:listing:list:p1:l20", ListKey("listing", 1, 20))
	assert.Equal(t, "mkt:v1:post:list:p3:l50", ListKey("post", 3, 50))
}

func TestQueryKey_StableAndBounded(t *testing.T) {
	k1 := QueryKey("listing", "bikes in berlin under 200")
	k2 := QueryKey("listing", "bikes in berlin under 200")
	k3 := QueryKey("listing", "bikes in berlin under 300")

	assert.Equal(t, k1, k2, "same query must hash to the same key")
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, "mkt:v1:listing:query:")
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    KeyInfo
		wantErr bool
	}{
		{
			name: "entity key",
			key:  EntityKey("listing", "42"),
			want: KeyInfo{EntityType: "listing", EntityID: "42"},
		},
		{
			name: "list key",
			key:  ListKey("post", 2, 25),
			want: KeyInfo{EntityType: "post", Variant: "p2:l25", IsListKey: true},
		},
		{
			name: "query key",
			key:  QueryKey("listing", "lamp"),
			want: KeyInfo{EntityType: "listing", IsQueryKey: true},
		},
		{
			name: "bare type key",
			key:  "mkt:v1:listing",
			want: KeyInfo{EntityType: "listing"},
		},
		{name: "wrong prefix", key: "app:v1:listing:42", wantErr: true},
		{name: "wrong version", key: "mkt:v2:listing:42", wantErr: true},
		{name: "empty", key: "", wantErr: true},
		{name: "truncated list key", key: "mkt:v1:listing:list:p1", wantErr: true},
		{name: "non-numeric list page", key: "mkt:v1:listing:list:pX:l20", wantErr: true},
		{name: "query without hash", key: "mkt:v1:listing:query", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.key)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.EntityType, got.EntityType)
			assert.Equal(t, tt.want.EntityID, got.EntityID)
			assert.Equal(t, tt.want.IsListKey, got.IsListKey)
			assert.Equal(t, tt.want.IsQueryKey, got.IsQueryKey)
			if tt.want.Variant != "" {
				assert.Equal(t, tt.want.Variant, got.Variant)
			}
		})
	}
}

func TestParseKey_RoundTrip(t *testing.T) {
	info, err := ParseKey(EntityKey("review", "r-99"))
	require.NoError(t, err)
	assert.Equal(t, "review", info.EntityType)
	assert.Equal(t, "r-99", info.EntityID)
	assert.Equal(t, EntityKey(info.EntityType, info.EntityID), "mkt:v1:review:r-99")
}
