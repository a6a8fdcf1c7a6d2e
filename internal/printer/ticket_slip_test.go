package printer

import (
	"bytes"
	"testing"
	"time"

	"yard-anpr-service/internal/domain/yard"
)

func TestTicketSlip(t *testing.T) {
	pdf, err := TicketSlip(yard.ParkingTicket{
		TicketNumber: "PT-2026-000001",
		VehicleReg:   "ABC123GP",
		DriverName:   "Unknown",
		SiteID:       1,
		Status:       yard.TicketPending,
		PersonOnDuty: "ANPR System",
		ArrivalTime:  time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC),
		Remarks:      "Non-Matched Plate - No Scheduled Allocation",
	})
	if err != nil {
		t.Fatalf("TicketSlip: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("output is not a PDF")
	}
}

func TestTicketSlipRequiresNumber(t *testing.T) {
	if _, err := TicketSlip(yard.ParkingTicket{}); err == nil {
		t.Error("expected error for ticket without number")
	}
}
