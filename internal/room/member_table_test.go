package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberTableAddGetRemove(t *testing.T) {
	tbl := newMemberTable()

	tbl.Add(&Member{ConnID: "a"})
	tbl.Add(&Member{ConnID: "b"})
	assert.Equal(t, 2, tbl.Len())

	m, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", m.ConnID)

	tbl.Remove("a")
	assert.Equal(t, 1, tbl.Len())
	_, ok = tbl.Get("a")
	assert.False(t, ok)
}

func TestMemberTableRemoveUnknownIsNoop(t *testing.T) {
	tbl := newMemberTable()
	tbl.Add(&Member{ConnID: "a"})

	tbl.Remove("nope")
	assert.Equal(t, 1, tbl.Len())
}

func TestMemberTableAddExistingUpdatesWithoutReordering(t *testing.T) {
	tbl := newMemberTable()
	tbl.Add(&Member{ConnID: "a", Nickname: "first"})
	tbl.Add(&Member{ConnID: "b", Nickname: "second"})
	tbl.Add(&Member{ConnID: "a", Nickname: "updated"})

	assert.Equal(t, []string{"a", "b"}, tbl.IDs(), "re-adding an existing id must not change insertion order")
	m, _ := tbl.Get("a")
	assert.Equal(t, "updated", m.Nickname)
}

func TestMemberTableOldest(t *testing.T) {
	tbl := newMemberTable()
	assert.Nil(t, tbl.Oldest(), "an empty table has no oldest member")

	tbl.Add(&Member{ConnID: "first"})
	tbl.Add(&Member{ConnID: "second"})
	assert.Equal(t, "first", tbl.Oldest().ConnID)

	tbl.Remove("first")
	assert.Equal(t, "second", tbl.Oldest().ConnID)
}

func TestMemberTableIDsOrderAndIsolation(t *testing.T) {
	tbl := newMemberTable()
	tbl.Add(&Member{ConnID: "a"})
	tbl.Add(&Member{ConnID: "b"})
	tbl.Add(&Member{ConnID: "c"})

	ids := tbl.IDs()
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	ids[0] = "mutated"
	assert.Equal(t, []string{"a", "b", "c"}, tbl.IDs(), "IDs must return a copy safe from caller mutation")
}

func TestMemberTableAllIsACopy(t *testing.T) {
	tbl := newMemberTable()
	tbl.Add(&Member{ConnID: "a", Nickname: "orig"})

	all := tbl.All()
	require.Len(t, all, 1)
	all[0].Nickname = "mutated"

	m, _ := tbl.Get("a")
	assert.Equal(t, "orig", m.Nickname, "All must hand back copies, not pointers into table state")
}

func TestMemberTableRange(t *testing.T) {
	tbl := newMemberTable()
	tbl.Add(&Member{ConnID: "a"})
	tbl.Add(&Member{ConnID: "b"})

	var seen []string
	tbl.Range(func(m *Member) { seen = append(seen, m.ConnID) })
	assert.Equal(t, []string{"a", "b"}, seen)
}
