package services

import (
	"math/rand/v2"

	"luckydraw/internal/models"
)

// Deck sizes. Draws always use DeckSize; a deal may ask for LargeDeckSize.
const (
	DeckSize      = 3
	LargeDeckSize = 9
)

// ValidRedCountMode reports whether mode is one of 0, 1, 2, 3.
func ValidRedCountMode(mode int) bool {
	return mode >= 0 && mode <= 3
}

// ValidDeckSize reports whether size is a supported deck length.
func ValidDeckSize(size int) bool {
	return size == DeckSize || size == LargeDeckSize
}

// RedCount is the number of winning faces in a deck of size cards: mode,
// capped at the deck size.
func RedCount(mode, size int) int {
	return min(mode, size)
}

// GenerateFaces deals a uniformly shuffled deck holding RedCount(mode, size)
// winning faces.
func GenerateFaces(mode, size int) ([]models.Face, error) {
	if !ValidRedCountMode(mode) {
		return nil, ErrInvalidConfig
	}
	if !ValidDeckSize(size) {
		return nil, ErrInvalidDeckSize
	}
	faces := make([]models.Face, size)
	red := RedCount(mode, size)
	for i := range faces {
		if i < red {
			faces[i] = models.FaceWin
		} else {
			faces[i] = models.FaceBlank
		}
	}
	// rand.Shuffle is a Fisher-Yates shuffle.
	rand.Shuffle(len(faces), func(i, j int) {
		faces[i], faces[j] = faces[j], faces[i]
	})
	return faces, nil
}

// WinIndex returns the index of the first winning face, or -1.
func WinIndex(faces []models.Face) int {
	for i, f := range faces {
		if f == models.FaceWin {
			return i
		}
	}
	return -1
}
