package stats

import (
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWriteRunWorkbook(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-1")
	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	path, err := WriteRunWorkbook(runDir, artifacts)
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	runID, err := f.GetCellValue("Summary", "B1")
	if err != nil {
		t.Fatalf("read summary cell: %v", err)
	}
	if runID != "run-1" {
		t.Fatalf("unexpected run id cell: %q", runID)
	}

	rows, err := f.GetRows("Episodes")
	if err != nil {
		t.Fatalf("read episodes sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one episode row, got %d rows", len(rows))
	}
	if rows[1][1] != "episode-1" {
		t.Fatalf("unexpected episode row: %v", rows[1])
	}
}
