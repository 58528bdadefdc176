package cmd

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	records := [][]string{
		{"Name", "Age"},
		{"Smith, John", "40"},
		{"Иван", "15"},
	}

	if err := writeRecords(path, records); err != nil {
		t.Fatalf("writeRecords: %v", err)
	}
	got, err := readRecords(path)
	if err != nil {
		t.Fatalf("readRecords: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("round trip: got %v, want %v", got, records)
	}
}

func TestExcelRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.xlsx")
	records := [][]string{
		{"Name", "Age"},
		{"Smith, John", "40"},
		{"Иван", "15"},
	}

	if err := writeRecords(path, records); err != nil {
		t.Fatalf("writeRecords: %v", err)
	}
	got, err := readRecords(path)
	if err != nil {
		t.Fatalf("readRecords: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("round trip: got %v, want %v", got, records)
	}
}

func TestIsExcel(t *testing.T) {
	for path, want := range map[string]bool{
		"table.xlsx":     true,
		"TABLE.XLSX":     true,
		"table.csv":      false,
		"table.xlsx.bak": false,
		"dir.xlsx/t.csv": false,
		"noextension":    false,
	} {
		if got := isExcel(path); got != want {
			t.Errorf("isExcel(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestReadRecordsMissingFile(t *testing.T) {
	if _, err := readRecords(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := readRecords(filepath.Join(t.TempDir(), "absent.xlsx")); err == nil {
		t.Error("expected error for missing workbook")
	}
}
