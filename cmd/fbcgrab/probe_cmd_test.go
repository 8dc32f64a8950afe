package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/breeze-rmm/fbcgrab/internal/capture"
)

func sampleReport() probeReport {
	return probeReport{
		Host: &hostInfo{Hostname: "render-01", OS: "linux"},
		Capture: &capture.ProbeReport{
			Display:        ":0",
			ScreenWidth:    1920,
			ScreenHeight:   1080,
			LibraryVersion: "1.8",
			CanCreateNow:   true,
			Outputs:        []capture.ProbeOutput{{ID: 7, Name: "DP-0", Geometry: "1920x1080+0+0"}},
		},
	}
}

func TestWriteReportYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, "yaml", sampleReport()); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	for _, want := range []string{"hostname: render-01", "screenWidth: 1920", "name: DP-0", "canCreateNow: true"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("yaml output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, "json", sampleReport()); err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	if !strings.Contains(buf.String(), `"geometry": "1920x1080+0+0"`) {
		t.Fatalf("json output:\n%s", buf.String())
	}
}

func TestWriteReportUnknownFormat(t *testing.T) {
	if err := writeReport(&bytes.Buffer{}, "xml", sampleReport()); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestOpenOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.raw")
	w, closeOut, err := openOutput(path)
	if err != nil {
		t.Fatalf("openOutput: %v", err)
	}
	if _, err := w.Write([]byte("frame")); err != nil {
		t.Fatalf("write: %v", err)
	}
	closeOut()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "frame" {
		t.Fatalf("file = %q", data)
	}
}

func TestOpenOutputDiscard(t *testing.T) {
	w, closeOut, err := openOutput("")
	if err != nil || w != nil {
		t.Fatalf("openOutput(\"\") = %v, %v", w, err)
	}
	closeOut()
}
