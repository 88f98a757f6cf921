package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenantlabs/covenant/pkg/contracts"
)

func TestGrantAndLevel(t *testing.T) {
	tbl := NewTable()

	_, ok := tbl.Level(0, "alice")
	assert.False(t, ok)

	tbl.Grant(0, "alice", contracts.AccessRead)
	level, ok := tbl.Level(0, "alice")
	require.True(t, ok)
	assert.Equal(t, contracts.AccessRead, level)

	// A second grant overwrites the stored level.
	tbl.Grant(0, "alice", contracts.AccessAdmin)
	level, _ = tbl.Level(0, "alice")
	assert.Equal(t, contracts.AccessAdmin, level)

	// Entries are scoped per contract.
	_, ok = tbl.Level(1, "alice")
	assert.False(t, ok)
}

func TestRevoke(t *testing.T) {
	tbl := NewTable()
	tbl.Grant(0, "alice", contracts.AccessWrite)

	tbl.Revoke(0, "alice")
	_, ok := tbl.Level(0, "alice")
	assert.False(t, ok)

	// Revoking a missing entry is a no-op.
	tbl.Revoke(0, "ghost")
}

func TestIsAdmin(t *testing.T) {
	tbl := NewTable()

	assert.False(t, tbl.IsAdmin(0, "alice"))

	tbl.Grant(0, "alice", contracts.AccessWrite)
	assert.False(t, tbl.IsAdmin(0, "alice"), "Write must not imply Admin")

	tbl.Grant(0, "alice", contracts.AccessAdmin)
	assert.True(t, tbl.IsAdmin(0, "alice"))
}

func TestHasAtLeast(t *testing.T) {
	tbl := NewTable()
	tbl.Grant(0, "writer", contracts.AccessWrite)
	tbl.Grant(0, "reader", contracts.AccessRead)
	tbl.Grant(0, "admin", contracts.AccessAdmin)

	assert.True(t, tbl.HasAtLeast(0, "writer", contracts.AccessRead))
	assert.True(t, tbl.HasAtLeast(0, "writer", contracts.AccessWrite))
	assert.False(t, tbl.HasAtLeast(0, "writer", contracts.AccessAdmin))

	assert.False(t, tbl.HasAtLeast(0, "reader", contracts.AccessWrite))
	assert.True(t, tbl.HasAtLeast(0, "admin", contracts.AccessWrite))

	assert.False(t, tbl.HasAtLeast(0, "nobody", contracts.AccessRead))
}

func TestList(t *testing.T) {
	tbl := NewTable()
	tbl.Grant(0, "alice", contracts.AccessAdmin)
	tbl.Grant(0, "bob", contracts.AccessRead)
	tbl.Grant(1, "carol", contracts.AccessWrite)

	entries := tbl.List(0)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, contracts.ContractID(0), e.ContractID)
	}

	assert.Empty(t, tbl.List(9))
}
