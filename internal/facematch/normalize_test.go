package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Ruhi", "Ruhi"},
		{"Jiří", "Jiri"},
		{"Zoë", "Zoe"},
		{"Ñuñez", "Nunez"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Anita Sharma", "anita sharma"},
		{"anita-sharma", "anita sharma"},
		{"ANITA_SHARMA", "anita sharma"},
		{"  Anita   Sharma ", "anita sharma"},
		{"Jiří Novák", "jiri novak"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizePersonName(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePersonName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSameName(t *testing.T) {
	if !SameName("Jiří Novák", "jiri-novak") {
		t.Error("expected names to match after normalization")
	}
	if SameName("Anita", "Anil") {
		t.Error("expected different names not to match")
	}
}

func TestValidFileName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"Anita Sharma", true},
		{"Jiří", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../etc/passwd", false},
		{`C:\evil`, false},
		{" padded", false},
		{"tab\tname", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidFileName(tt.name); got != tt.valid {
				t.Errorf("ValidFileName(%q) = %v, want %v", tt.name, got, tt.valid)
			}
		})
	}
}
