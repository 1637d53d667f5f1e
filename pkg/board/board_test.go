package board

import (
	"testing"

	"github.com/merkleship/merkleship/pkg/game/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquareIndexRoundTrip(t *testing.T) {
	for y := uint8(0); y < constants.Rows; y++ {
		for x := uint8(0); x < constants.Columns; x++ {
			square, err := SquareIndex(x, y)
			require.NoError(t, err)

			gotX, gotY := SquareXY(square)
			assert.Equal(t, x, gotX)
			assert.Equal(t, y, gotY)
		}
	}
}

func TestSquareIndexBounds(t *testing.T) {
	_, err := SquareIndex(8, 0)
	assert.Error(t, err)
	_, err = SquareIndex(0, 8)
	assert.Error(t, err)
}

func TestEncodeDecodeLeaf(t *testing.T) {
	tests := []struct {
		name     string
		ship     bool
		x, y     uint8
		codeword string
	}{
		{name: "ship at origin", ship: true, x: 0, y: 0, codeword: "battleship"},
		{name: "water at far corner", ship: false, x: 7, y: 7, codeword: "xyz"},
		{name: "mid board", ship: true, x: 3, y: 5, codeword: "s3cr3t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaf := EncodeLeaf(tt.ship, tt.x, tt.y, tt.codeword)

			ship, x, y, codeword, err := DecodeLeaf(leaf)
			require.NoError(t, err)
			assert.Equal(t, tt.ship, ship)
			assert.Equal(t, tt.x, x)
			assert.Equal(t, tt.y, y)
			assert.Equal(t, tt.codeword, codeword)
		})
	}
}

func TestDecodeLeafRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		leaf string
	}{
		{name: "empty", leaf: ""},
		{name: "too short", leaf: "10"},
		{name: "bad ship flag", leaf: "200secret"},
		{name: "x off board", leaf: "190secret"},
		{name: "y off board", leaf: "109secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, _, err := DecodeLeaf(tt.leaf)
			assert.Error(t, err)
		})
	}
}
