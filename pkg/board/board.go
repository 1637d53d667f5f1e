package board

import (
	"fmt"

	"github.com/merkleship/merkleship/pkg/game/constants"
)

// Square is a board position as a flat index in row-major order,
// index = y*8 + x, matching the client board layout.
type Square = uint8

// SquareIndex converts board coordinates to a flat square index.
func SquareIndex(x, y uint8) (Square, error) {
	if x >= constants.Columns || y >= constants.Rows {
		return 0, fmt.Errorf("square (%d,%d) is off the board", x, y)
	}
	return y*constants.Columns + x, nil
}

// SquareXY converts a flat square index back to board coordinates.
func SquareXY(square Square) (x, y uint8) {
	return square % constants.Columns, square / constants.Columns
}

// EncodeLeaf builds the canonical leaf preimage for one board cell:
// ship flag, x, y, then the secret codeword for that cell.
func EncodeLeaf(ship bool, x, y uint8, codeword string) string {
	flag := "0"
	if ship {
		flag = "1"
	}
	return fmt.Sprintf("%s%d%d%s", flag, x, y, codeword)
}

// DecodeLeaf splits a leaf preimage into its parts. The codeword is
// returned only so callers can confirm it is non-empty; its value carries
// no game meaning.
func DecodeLeaf(leaf string) (ship bool, x, y uint8, codeword string, err error) {
	if len(leaf) < 3 {
		return false, 0, 0, "", fmt.Errorf("leaf too short: %q", leaf)
	}
	switch leaf[0] {
	case '0':
		ship = false
	case '1':
		ship = true
	default:
		return false, 0, 0, "", fmt.Errorf("invalid ship flag %q", leaf[0])
	}
	x = leaf[1] - '0'
	y = leaf[2] - '0'
	if x >= constants.Columns || y >= constants.Rows {
		return false, 0, 0, "", fmt.Errorf("leaf coordinates (%d,%d) are off the board", x, y)
	}
	return ship, x, y, leaf[3:], nil
}
