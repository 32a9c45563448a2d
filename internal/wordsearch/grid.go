// Package wordsearch builds the letter grids backing word-search blocks.
//
// Grids use ambient randomness on purpose: a grid is generated once in the
// editor and persisted on the block, so unlike the seeded exercise shuffles
// it never has to be reproduced across render contexts.
package wordsearch

import (
	"math/rand"
	"strings"
)

// maxAttempts bounds the random placements tried per word before the word
// is dropped from the grid.
const maxAttempts = 100

// direction is a (dx, dy) step per letter.
type direction struct{ dx, dy int }

// Six of the eight straight directions; up and diag-up-left are unused.
var directions = []direction{
	{1, 0},   // right
	{0, 1},   // down
	{1, 1},   // diag down-right
	{1, -1},  // diag up-right
	{-1, 0},  // left
	{-1, 1},  // diag down-left
}

// Generate places each word onto a rows×cols grid along a random direction,
// allowing crossings where letters agree, then fills the leftover cells
// with random A-Z letters. A word that cannot be placed within the attempt
// budget is silently skipped; that is accepted lossy behaviour, not an
// error.
func Generate(words []string, cols, rows int) [][]string {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	grid := make([][]string, rows)
	for r := range grid {
		grid[r] = make([]string, cols)
	}

	for _, raw := range words {
		word := normalize(raw)
		if word == "" {
			continue
		}
		placeWord(grid, []rune(word), cols, rows)
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if grid[r][c] == "" {
				grid[r][c] = string(rune('A' + rand.Intn(26)))
			}
		}
	}
	return grid
}

func normalize(word string) string {
	return strings.ToUpper(strings.Join(strings.Fields(word), ""))
}

func placeWord(grid [][]string, letters []rune, cols, rows int) bool {
	n := len(letters)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		dir := directions[rand.Intn(len(directions))]

		// Valid start range so the whole word stays in bounds.
		minCol, maxCol := 0, cols-1
		minRow, maxRow := 0, rows-1
		switch {
		case dir.dx > 0:
			maxCol = cols - n
		case dir.dx < 0:
			minCol = n - 1
		}
		switch {
		case dir.dy > 0:
			maxRow = rows - n
		case dir.dy < 0:
			minRow = n - 1
		}
		if maxCol < minCol || maxRow < minRow {
			continue // word longer than the grid in this direction
		}

		col := minCol + rand.Intn(maxCol-minCol+1)
		row := minRow + rand.Intn(maxRow-minRow+1)

		if !fits(grid, letters, row, col, dir) {
			continue
		}
		for i, letter := range letters {
			grid[row+i*dir.dy][col+i*dir.dx] = string(letter)
		}
		return true
	}
	return false
}

// fits verifies every cell along the path is empty or already holds the
// matching letter (crossings allowed).
func fits(grid [][]string, letters []rune, row, col int, dir direction) bool {
	for i, letter := range letters {
		cell := grid[row+i*dir.dy][col+i*dir.dx]
		if cell != "" && cell != string(letter) {
			return false
		}
	}
	return true
}
