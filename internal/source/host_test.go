package source

import "testing"

func TestHostReaderRead(t *testing.T) {
	h := NewHostReader()

	first, err := h.Read()
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	if len(first.CoreUtil) == 0 {
		t.Error("expected at least one CPU core")
	}

	second, err := h.Read()
	if err != nil {
		t.Fatalf("second read error: %v", err)
	}
	if second.RAMUsedGB <= 0 {
		t.Errorf("ram used = %f, want > 0", second.RAMUsedGB)
	}
	if len(second.CoreUtil) != len(first.CoreUtil) {
		t.Errorf("core count changed between reads: %d vs %d", len(first.CoreUtil), len(second.CoreUtil))
	}
}
