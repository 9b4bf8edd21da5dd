package keyboard

import (
	"reflect"
	"testing"
)

func TestGridTwoPerRowWithTail(t *testing.T) {
	m := Grid(Texts("A", "B", "C"), 2, Texts("⬅️ Назад"))
	want := [][]string{{"A", "B"}, {"C"}, {"⬅️ Назад"}}
	if got := Labels(m); !reflect.DeepEqual(got, want) {
		t.Fatalf("labels = %v, want %v", got, want)
	}
	if !m.ResizeKeyboard {
		t.Fatal("keyboard must be resizable")
	}
}

func TestGridWebAppButton(t *testing.T) {
	m := Grid([]Button{{Text: "Помощник", WebAppURL: "https://app.example"}}, 2)
	if len(m.ReplyKeyboard) != 1 || m.ReplyKeyboard[0][0].WebApp == nil {
		t.Fatalf("expected web app button, got %+v", m.ReplyKeyboard)
	}
	if m.ReplyKeyboard[0][0].WebApp.URL != "https://app.example" {
		t.Fatalf("url = %q", m.ReplyKeyboard[0][0].WebApp.URL)
	}
}

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"1,3,5", "2,4,6"}, []string{"7"})
	want := [][]string{{"1,3,5", "2,4,6"}, {"7"}}
	if got := Labels(m); !reflect.DeepEqual(got, want) {
		t.Fatalf("labels = %v", got)
	}
}

func TestChunkButtons(t *testing.T) {
	rows := ChunkButtons([]int{1, 2, 3, 4, 5}, 2)
	if len(rows) != 3 || len(rows[2]) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	single := ChunkButtons([]int{1, 2}, 0)
	if len(single) != 2 {
		t.Fatalf("single = %v", single)
	}
	if ChunkButtons([]int(nil), 2) != nil {
		t.Fatal("empty input must give nil rows")
	}
}
