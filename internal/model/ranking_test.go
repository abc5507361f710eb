package model

import "testing"

func TestValidBoard(t *testing.T) {
	for _, board := range Boards() {
		if !ValidBoard(board) {
			t.Errorf("ValidBoard(%q) = false, want true", board)
		}
	}
	for _, s := range []string{"", "loudest_cafes", "QUIET_CAFES"} {
		if ValidBoard(s) {
			t.Errorf("ValidBoard(%q) = true, want false", s)
		}
	}
}

func TestBoardsComplete(t *testing.T) {
	want := map[string]bool{
		BoardQuietCafes:   true,
		BoardTopMeasurers: true,
		BoardActiveCafes:  true,
	}
	boards := Boards()
	if len(boards) != len(want) {
		t.Fatalf("Boards() = %v, want %d boards", boards, len(want))
	}
	for _, b := range boards {
		if !want[b] {
			t.Errorf("Boards() contains unknown id %q", b)
		}
	}
}
