package clip

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMemoryKeepsLastWrite(t *testing.T) {
	m := NewMemory()
	if items, err := m.Read(); err != nil || len(items) != 0 {
		t.Fatalf("empty Read = %v, %v", items, err)
	}
	in := []Item{{MIME: "text/plain", Data: []byte("one")}}
	if err := m.Write(in); err != nil {
		t.Fatal(err)
	}
	in[0].MIME = "mutated"
	got, _ := m.Read()
	if diff := cmp.Diff([]Item{{MIME: "text/plain", Data: []byte("one")}}, got); diff != "" {
		t.Errorf("Read (-want +got):\n%s", diff)
	}
	if m.Writes() != 1 {
		t.Errorf("Writes = %d", m.Writes())
	}
}
