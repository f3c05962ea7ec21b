package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeStatus_IsClosed(t *testing.T) {
	tests := []struct {
		name     string
		status   ChangeStatus
		expected bool
	}{
		{name: "new is open", status: StatusNew, expected: false},
		{name: "submitted is open", status: StatusSubmitted, expected: false},
		{name: "draft is open", status: StatusDraft, expected: false},
		{name: "merged is closed", status: StatusMerged, expected: true},
		{name: "abandoned is closed", status: StatusAbandoned, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsClosed())
		})
	}
}

func TestParseChangeStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected ChangeStatus
		wantErr  bool
	}{
		{input: "n", expected: StatusNew},
		{input: "M", expected: StatusMerged},
		{input: "merged", expected: StatusMerged},
		{input: "Submitted", expected: StatusSubmitted},
		{input: " abandoned ", expected: StatusAbandoned},
		{input: "draft", expected: StatusDraft},
		{input: "closed", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChangeStatus(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewBranch(t *testing.T) {
	b := NewBranch("tools", "master")
	assert.Equal(t, "refs/heads/master", b.Name)
	assert.Equal(t, "master", b.ShortName())
	assert.Equal(t, "tools:refs/heads/master", b.String())

	full := NewBranch("tools", "refs/heads/stable-2.1")
	assert.Equal(t, "refs/heads/stable-2.1", full.Name)
}

func TestParsePatchSetID(t *testing.T) {
	id, err := ParsePatchSetID("100,3")
	require.NoError(t, err)
	assert.Equal(t, PatchSetID{ChangeID: 100, PatchSet: 3}, id)
	assert.Equal(t, "100,3", id.String())

	_, err = ParsePatchSetID("100")
	require.Error(t, err)

	_, err = ParsePatchSetID("abc,1")
	require.Error(t, err)
}

func TestApprovalCategory_Clamp(t *testing.T) {
	crvw := DefaultApprovalCategories[0]
	assert.Equal(t, int16(2), crvw.Clamp(5))
	assert.Equal(t, int16(-2), crvw.Clamp(-7))
	assert.Equal(t, int16(1), crvw.Clamp(1))
	assert.False(t, crvw.IsAction())

	subm := DefaultApprovalCategories[2]
	assert.True(t, subm.IsAction())
}

func TestUser_EffectiveGroups(t *testing.T) {
	u := User{Name: "alice", Groups: []string{"committers", RegisteredUsersGroup}}
	assert.Equal(t, []string{RegisteredUsersGroup, "committers"}, u.EffectiveGroups())

	anon := User{Name: "bob"}
	assert.Equal(t, []string{RegisteredUsersGroup}, anon.EffectiveGroups())
}
