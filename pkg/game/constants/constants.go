package constants

import "time"

const (
	// Rows is the number of rows on a board
	Rows uint8 = 8
	// Columns is the number of columns on a board
	Columns uint8 = 8
	// Squares is the total number of squares on a board
	Squares = int(Rows) * int(Columns)
	// ProofDepth is the depth of the board commitment tree (64 leaves)
	ProofDepth = 6
	// HitThreshold is the number of confirmed hits needed to claim victory
	HitThreshold uint8 = 12
	// AbandonThreshold is how long a player may sit on their turn before
	// anyone can resolve the game against them
	AbandonThreshold = 48 * time.Hour
	// RespondThreshold is the window for challenging a pending victory
	// and for answering a challenge
	RespondThreshold = 24 * time.Hour
)
