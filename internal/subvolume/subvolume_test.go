package subvolume

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubvolumeStatic(t *testing.T) {
	tests := []struct {
		name string
		gen  uint64
		ogen uint64
		want bool
	}{
		{"never touched", 5, 5, true},
		{"one write since creation", 6, 5, true},
		{"several writes since creation", 8, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sv := &Subvolume{Gen: tt.gen, OGen: tt.ogen}
			assert.Equal(t, tt.want, sv.Static())
		})
	}
}

func TestSubvolumeHasParentUUID(t *testing.T) {
	withOrigin := &Subvolume{UUID: uuid.New(), ParentUUID: uuid.New()}
	assert.True(t, withOrigin.HasParentUUID())

	noOrigin := &Subvolume{UUID: uuid.New()}
	assert.False(t, noOrigin.HasParentUUID())

	var nilSv *Subvolume
	assert.False(t, nilSv.HasParentUUID())
}

func TestSubvolumeValidate(t *testing.T) {
	tests := []struct {
		name    string
		sv      Subvolume
		wantErr bool
	}{
		{"valid", Subvolume{ID: 1, UUID: uuid.New(), Gen: 5, OGen: 3}, false},
		{"missing uuid", Subvolume{ID: 1, Gen: 5, OGen: 3}, true},
		{"gen less than ogen", Subvolume{ID: 1, UUID: uuid.New(), Gen: 2, OGen: 3}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sv.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
