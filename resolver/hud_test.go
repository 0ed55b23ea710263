package resolver

import (
	"testing"
	"time"

	"ilmem/process"
)

func TestHUDFromClassStatics(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addHUD()
	s := w.session()

	if hud := s.HUD(); hud != hudObject {
		t.Fatalf("expected HUD at %s, got %s", hudObject.ToString(), hud.ToString())
	}

	w.blob.ResetReadCount()
	s.HUD()
	if n := w.blob.ReadCount(); n != 1 {
		t.Fatalf("cached HUD should cost one class check, got %d reads", n)
	}
}

func TestReportButtonActiveFlag(t *testing.T) {
	w := newWorld(t, process.Arch64)
	w.addHUD()
	flags := w.fields(reportObj)
	w.blob.PutU8(flags+0x20, 1)
	w.blob.PutU8(flags+0x24, 7)
	s := w.session()

	active, ok, diag := s.IsReportButtonActive()
	if !ok || !active {
		t.Fatalf("expected active, got %v ok=%v diag=%v", active, ok, diag)
	}
	if diag["report_button_ptr"] != reportObj || diag["chosen_offset"] != uint64(0x20) {
		t.Fatalf("unexpected diagnostics %v", diag)
	}
	candidates := diag["bool_candidates"].(map[uint64]uint8)
	if _, ok := candidates[0x24]; ok {
		t.Fatalf("non-boolean byte listed as candidate: %v", candidates)
	}

	w.blob.PutU8(flags+0x20, 0)
	active, ok, diag = s.IsReportButtonActive()
	if !ok || active || diag["bool_candidates"] != nil {
		t.Fatalf("expected the cached offset to read inactive, got %v ok=%v diag=%v", active, ok, diag)
	}

	w.blob.PutU8(flags+0x20, 9)
	w.blob.PutU8(flags+0x28, 1)
	active, ok, diag = s.IsReportButtonActive()
	if !ok || !active || diag["chosen_offset"] != uint64(0x28) {
		t.Fatalf("expected a re-search to 0x28, got %v ok=%v diag=%v", active, ok, diag)
	}
}

func TestReportButtonScanIsThrottled(t *testing.T) {
	w := newWorld(t, process.Arch64)
	s := w.session()

	if _, ok, diag := s.IsReportButtonActive(); ok || diag["error"] != "report button not found" {
		t.Fatalf("expected no button, got ok=%v diag=%v", ok, diag)
	}

	// a button that appears on the heap is only picked up after the interval
	w.object(reportObj, rvaReportButton)
	if rb := s.ReportButton(); rb != 0 {
		t.Fatalf("scan should be throttled, got %s", rb.ToString())
	}

	w.now = w.now.Add(w.cfg.ReportScanInterval + time.Millisecond)
	if rb := s.ReportButton(); rb != reportObj {
		t.Fatalf("expected the heap instance after the interval, got %s", rb.ToString())
	}
}
