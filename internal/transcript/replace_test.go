package transcript

import "testing"

func TestReplacerApply(t *testing.T) {
	t.Parallel()

	r := NewReplacer(map[string]string{
		"ゴーラング": "Go",
		"クーベ":   "kube",
	})
	got := r.Apply("ゴーラングでクーベのツールを書く")
	want := "Goでkubeのツールを書く"
	if got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestReplacerLongestKeyWins(t *testing.T) {
	t.Parallel()

	// The compound entry must apply before its prefix.
	r := NewReplacer(map[string]string{
		"クーベ":     "kube",
		"クーベコントロ": "kubectl",
	})
	if got := r.Apply("クーベコントロを実行"); got != "kubectlを実行" {
		t.Errorf("Apply = %q, want kubectlを実行", got)
	}
}

func TestReplacerEmptyTable(t *testing.T) {
	t.Parallel()

	r := NewReplacer(nil)
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	if got := r.Apply("そのまま"); got != "そのまま" {
		t.Errorf("Apply = %q, want unchanged", got)
	}
}

func TestContainsAnyFiller(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"えーと今日は", true},
		{"あのー、はい", true},
		{"今日はいい天気", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := containsAnyFiller(tt.text, DefaultFillers); got != tt.want {
			t.Errorf("containsAnyFiller(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestStripFillers(t *testing.T) {
	t.Parallel()

	got := stripFillers("えーとえーとあのーはい", DefaultFillers)
	if got != "はい" {
		t.Errorf("stripFillers = %q, want %q", got, "はい")
	}
}

func TestFlattenLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"一行目\n二行目", "一行目 二行目"},
		{"  leading\n\n  and   runs\t", "leading and runs"},
		{"single", "single"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FlattenLines(tt.in); got != tt.want {
			t.Errorf("FlattenLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
