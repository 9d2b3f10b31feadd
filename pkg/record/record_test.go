package record

import "testing"

func TestIDAssignment(t *testing.T) {
	if got, want := ID(0), uint32(100); got != want {
		t.Errorf("ID(0) = %d, want %d", got, want)
	}
	if got, want := ID(3), uint32(103); got != want {
		t.Errorf("ID(3) = %d, want %d", got, want)
	}
}

func TestValidateRejectsEmptyName(t *testing.T) {
	err := Validate([]Record{{Type: "ai"}})
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestValidateRejectsOversizedFields(t *testing.T) {
	cases := []Record{
		{Name: string(make([]byte, 65536)), Type: "ai"},
		{Name: "x", Type: string(make([]byte, 256))},
		{Name: "x", Type: "ai", Alias: string(make([]byte, 65536))},
		{Name: "x", Type: "ai", Properties: map[string]string{string(make([]byte, 256)): "v"}},
		{Name: "x", Type: "ai", Properties: map[string]string{"k": string(make([]byte, 65536))}},
	}
	for i, r := range cases {
		if err := Validate([]Record{r}); err == nil {
			t.Errorf("case %d: expected error, got nil", i)
		}
	}
}

func TestValidateAccepts(t *testing.T) {
	recs := []Record{
		{Name: "DEV:R", Type: "ai", Properties: map[string]string{"desc": "x"}},
		{Name: "DEV:R2", Type: "ai", Alias: "DEV:R2ALIAS"},
	}
	if err := Validate(recs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHasAlias(t *testing.T) {
	if (Record{}).HasAlias() {
		t.Error("zero-value record should not have an alias")
	}
	if !(Record{Alias: "a"}).HasAlias() {
		t.Error("record with alias should report HasAlias")
	}
}
