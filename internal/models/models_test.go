package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermissionKey(t *testing.T) {
	key, err := ParsePermissionKey(" Documents.Delete ")
	require.NoError(t, err)
	assert.Equal(t, PermissionKey{Module: "documents", Action: "delete"}, key)
	assert.Equal(t, "documents.delete", key.String())

	for _, raw := range []string{"", "documents", ".delete", "documents."} {
		_, err := ParsePermissionKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseEntityType(t *testing.T) {
	et, ok := ParseEntityType("Student")
	require.True(t, ok)
	assert.Equal(t, EntityTypeStudent, et)
	_, ok = ParseEntityType("parent")
	assert.False(t, ok)
}

func TestPurgeCriteriaCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	c := PurgeCriteria{OlderThanDays: 30, Now: now}
	assert.Equal(t, now.AddDate(0, 0, -30), c.Cutoff())
	assert.True(t, c.HasFilter())
	assert.True(t, PurgeCriteria{}.Cutoff().IsZero())
	assert.False(t, PurgeCriteria{}.HasFilter())
}
