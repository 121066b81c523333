package database

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVersioner struct {
	version uint
	dirty   bool
	err     error
}

func (f fakeVersioner) Version() (uint, bool, error) { return f.version, f.dirty, f.err }

func TestCurrentVersion(t *testing.T) {
	tests := []struct {
		name      string
		v         fakeVersioner
		want      uint
		wantDirty bool
		wantErr   bool
	}{
		{"未適用は0", fakeVersioner{err: migrate.ErrNilVersion}, 0, false, false},
		{"適用済み", fakeVersioner{version: 3}, 3, false, false},
		{"dirty", fakeVersioner{version: 2, dirty: true}, 2, true, false},
		{"取得失敗", fakeVersioner{err: errors.New("connection refused")}, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, dirty, err := currentVersion(tt.v)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "スキーマバージョンの取得に失敗しました")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, version)
			assert.Equal(t, tt.wantDirty, dirty)
		})
	}
}

func TestMigrationStatus_Applied(t *testing.T) {
	assert.True(t, MigrationStatus{Before: 0, After: 1}.Applied())
	assert.False(t, MigrationStatus{Before: 1, After: 1}.Applied())
}
