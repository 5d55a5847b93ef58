package progress

import (
	"bytes"
	"testing"
)

func TestLineReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &LineReporter{Out: &buf, Description: "Indexing"}
	r.Start(2)
	r.Update(1, "annex1")
	r.Update(2, "iso")
	r.Finish()

	want := "Indexing: 2 item(s)\n[1/2] annex1\n[2/2] iso\nIndexing: done\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter("x").(*LineReporter); !ok {
		t.Error("expected LineReporter in CI")
	}
}
