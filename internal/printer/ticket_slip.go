package printer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"yard-anpr-service/internal/domain/yard"
)

const (
	slipWidth  = 105.0
	slipMargin = 8.0
	qrSize     = 38.0
	timeLayout = "2006-01-02 15:04"
)

// TicketSlip renders a parking ticket as a single A6 page with a QR code of the
// ticket number for gate scanners.
func TicketSlip(t yard.ParkingTicket) ([]byte, error) {
	if t.TicketNumber == "" {
		return nil, errors.New("ticket number is required")
	}

	pdf := gofpdf.New("P", "mm", "A6", "")
	pdf.SetMargins(slipMargin, slipMargin, slipMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Parking Ticket "+t.TicketNumber, false)
	pdf.AddPage()

	contentW := slipWidth - 2*slipMargin

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(contentW, 8, "PARKING TICKET", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(contentW, 6, t.TicketNumber, "", 1, "C", false, 0, "")

	png, err := qrcode.Encode(t.TicketNumber, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", (slipWidth-qrSize)/2, pdf.GetY()+2, qrSize, qrSize, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + qrSize + 4)

	rows := [][2]string{
		{"Vehicle", t.VehicleReg},
		{"Driver", t.DriverName},
		{"Order", t.OrderNumber},
		{"Client", t.ClientName},
		{"Transporter", t.TransporterName},
		{"Product", t.Product},
		{"Site", fmt.Sprintf("%d", t.SiteID)},
		{"Arrived", t.ArrivalTime.Format(timeLayout)},
		{"Status", string(t.Status)},
		{"On duty", t.PersonOnDuty},
	}

	labelW := 26.0
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(labelW, 5, r[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(contentW-labelW, 5, r[1], "", 1, "L", false, 0, "")
	}

	if t.Remarks != "" {
		pdf.Ln(2)
		pdf.SetFont("Arial", "I", 8)
		pdf.MultiCell(contentW, 4, t.Remarks, "T", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
