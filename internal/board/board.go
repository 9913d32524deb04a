package board

import (
	"fmt"

	"github.com/roomgrid/tictactoe-rooms/internal/apperror"
)

const (
	MarkX = "X"
	MarkO = "O"

	// Tie is the evaluation result for a full board with no winning line.
	Tie = "-"

	EmptyCell = ""
)

// Lines are the 8 winning combinations, scanned rows first,
// then columns, then diagonals.
var Lines = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is a 9-cell grid in row-major order (rows 0-2, 3-5, 6-8).
type Board [9]string

func New() Board {
	return Board{}
}

// Apply returns a copy of the board with the mark placed at cell.
// A cell that is already occupied stays immutable until a restart
// clears the whole board.
func (that Board) Apply(cell int, mark string) (Board, error) {
	if cell < 0 || cell >= len(that) {
		return that, fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that[cell] != EmptyCell {
		return that, fmt.Errorf("%w: cell %d", apperror.ErrCellOccupied, cell)
	}

	that[cell] = mark

	return that, nil
}

// Evaluate reports the winning mark, Tie for a full board without a
// winner, or an empty string while the game is still undecided.
func (that Board) Evaluate() string {
	for _, line := range Lines {
		a, b, c := that[line[0]], that[line[1]], that[line[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	for _, cell := range that {
		if cell == EmptyCell {
			return ""
		}
	}

	return Tie
}

// OtherMark flips X to O and O to X.
func OtherMark(mark string) string {
	if mark == MarkX {
		return MarkO
	}

	return MarkX
}
