// Package render turns document snapshots into xlsx workbooks.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"collection-service/internal/entity"
)

const (
	SheetJob     = "Job"
	SheetItems   = "Items"
	SheetWeights = "Weights"
	SheetErasure = "Erasure"
)

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Signatures maps a role to its stored PNG. Missing roles are skipped.
type Signatures map[entity.SignatureRole][]byte

// Workbook renders snap. The returned bytes are a complete xlsx file.
func Workbook(snap *entity.DocumentSnapshot, sigs Signatures) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetJob); err != nil {
		return nil, err
	}
	if err := writeJob(f, snap, sigs); err != nil {
		return nil, fmt.Errorf("job sheet: %w", err)
	}
	if err := writeItems(f, snap.Items); err != nil {
		return nil, fmt.Errorf("items sheet: %w", err)
	}

	switch snap.Kind {
	case entity.DocWasteTransferNote:
		if err := writeWeights(f, snap.Weights); err != nil {
			return nil, fmt.Errorf("weights sheet: %w", err)
		}
	case entity.DocDestructionCertificate:
		if err := writeErasure(f, snap.Erasure); err != nil {
			return nil, fmt.Errorf("erasure sheet: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown document kind %q", snap.Kind)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var titles = map[entity.DocumentKind]string{
	entity.DocWasteTransferNote:      "Hazardous Waste Transfer Note",
	entity.DocDestructionCertificate: "Data Destruction Certificate",
}

func writeJob(f *excelize.File, snap *entity.DocumentSnapshot, sigs Signatures) error {
	job := snap.Job
	rows := [][]any{
		{titles[snap.Kind]},
		{},
		{"Job", job.Code},
		{"Status", string(job.Status)},
		{"Site", job.Site.Address},
		{"Contact", job.Site.ContactName},
		{"Phone", job.Site.ContactPhone},
		{"Vehicle", job.VehicleReg},
		{"Driver", job.DriverName},
		{"Collected", stamp(job.CollectedAt)},
		{"Received", stamp(job.ReceivedAt)},
		{"Processed", stamp(job.ProcessedAt)},
		{"Completed", stamp(job.CompletedAt)},
		{},
		{"Customer signature", job.Signatures.CustomerName},
		{"Driver signature", job.Signatures.DriverName},
		{"Facility signature", job.Signatures.StaffName},
	}
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		if err := f.SetSheetRow(SheetJob, cell(1, i+1), &r); err != nil {
			return err
		}
	}

	// images go in column C next to the signer's name
	firstSig := len(rows) - 2
	for i, role := range []entity.SignatureRole{entity.SignatureCustomer, entity.SignatureDriver, entity.SignatureStaff} {
		img, ok := sigs[role]
		if !ok || len(img) == 0 {
			continue
		}
		pic := &excelize.Picture{
			Extension: ".png",
			File:      img,
			Format: &excelize.GraphicOptions{
				AltText: string(role) + " signature",
				ScaleX:  0.25,
				ScaleY:  0.25,
			},
		}
		if err := f.AddPictureFromBytes(SheetJob, cell(3, firstSig+i), pic); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetJob, "A", "A", 22)
}

func writeItems(f *excelize.File, items []entity.JobItem) error {
	if _, err := f.NewSheet(SheetItems); err != nil {
		return err
	}
	header := []any{"Item", "Qty", "Category", "Make", "Model", "Serial", "Asset tag", "Erasure", "Weight", "Outcome"}
	if err := f.SetSheetRow(SheetItems, "A1", &header); err != nil {
		return err
	}
	for i, it := range items {
		var mk, model, serial, tag, erasure, outcome string
		weight := it.DefaultWeight
		if c := it.Collection; c != nil {
			mk, model, serial, tag, erasure = c.Make, c.Model, c.SerialNumber, c.AssetTag, c.ErasureRequired
		}
		if p := it.Processing; p != nil {
			mk = firstNonEmpty(p.Make, mk)
			model = firstNonEmpty(p.Model, model)
			serial = firstNonEmpty(p.SerialNumber, serial)
			outcome = p.Outcome
			if p.Weight.Valid {
				weight = p.Weight.Decimal
			}
		}
		row := []any{it.ItemNumber, it.Quantity, categoryCell(it.CategoryID), mk, model, serial, tag, erasure, number(weight), outcome}
		if err := f.SetSheetRow(SheetItems, cell(1, i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func writeWeights(f *excelize.File, weights []entity.CategoryWeight) error {
	if _, err := f.NewSheet(SheetWeights); err != nil {
		return err
	}
	header := []any{"Category", "Sub-category", "EWC code", "Hazard codes", "Quantity", "Weight (kg)"}
	if err := f.SetSheetRow(SheetWeights, "A1", &header); err != nil {
		return err
	}
	total := decimal.Zero
	for i, w := range weights {
		row := []any{w.CategoryName, w.SubCategoryName, w.EWCCode, strings.Join(w.HazardCodes, ", "), w.Quantity, number(w.Weight)}
		if err := f.SetSheetRow(SheetWeights, cell(1, i+2), &row); err != nil {
			return err
		}
		total = total.Add(w.Weight)
	}
	last := []any{"Total", "", "", "", "", number(total)}
	return f.SetSheetRow(SheetWeights, cell(1, len(weights)+2), &last)
}

func writeErasure(f *excelize.File, groups []entity.ErasureGroup) error {
	if _, err := f.NewSheet(SheetErasure); err != nil {
		return err
	}
	header := []any{"Category", "Item", "Asset tag", "Serial", "Method", "Erased"}
	if err := f.SetSheetRow(SheetErasure, "A1", &header); err != nil {
		return err
	}
	r := 2
	for _, g := range groups {
		for _, ln := range g.Items {
			row := []any{g.CategoryName, ln.ItemNumber, ln.AssetTag, ln.SerialNumber, ln.ErasureMethod, stamp(ln.ErasedAt)}
			if err := f.SetSheetRow(SheetErasure, cell(1, r), &row); err != nil {
				return err
			}
			r++
		}
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func number(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func categoryCell(id int64) any {
	if id == 0 {
		return "Unclassified"
	}
	return id
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
