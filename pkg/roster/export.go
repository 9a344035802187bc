package roster

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/arnavshah/homestay-api/pkg/models"
)

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// FamiliesDataset lists host families with their occupancy and preferences
func FamiliesDataset(families []models.HostFamily) Dataset {
	ds := Dataset{
		Title: "Host Families",
		Headers: []string{
			"Family ID", "Family Name", "Address", "Capacity", "Current Assignments",
			"Verification Status", "Preferred Gender", "Age Range", "Special Needs",
		},
	}
	for _, f := range families {
		gender, ageRange, special := "any", "", "No"
		if p := f.Preferences; p != nil {
			if p.Gender != "" {
				gender = string(p.Gender)
			}
			if p.AgeRange != nil {
				ageRange = fmt.Sprintf("%d-%d", p.AgeRange.Min, p.AgeRange.Max)
			}
			if p.SpecialNeeds {
				special = "Yes"
			}
		}
		ds.Rows = append(ds.Rows, map[string]string{
			"Family ID":           f.ID,
			"Family Name":         f.Name,
			"Address":             f.Address,
			"Capacity":            strconv.Itoa(f.Capacity),
			"Current Assignments": strconv.Itoa(f.CurrentAssignments),
			"Verification Status": string(f.VerificationStatus),
			"Preferred Gender":    gender,
			"Age Range":           ageRange,
			"Special Needs":       special,
		})
	}
	return ds
}

// ParticipantsDataset lists participants
func ParticipantsDataset(participants []models.Participant) Dataset {
	ds := Dataset{
		Title:   "Participants",
		Headers: []string{"ID", "Name", "Age", "Gender", "Special Needs", "Payment Status"},
	}
	for _, p := range participants {
		ds.Rows = append(ds.Rows, map[string]string{
			"ID":             p.ID,
			"Name":           p.Name,
			"Age":            strconv.Itoa(p.Age),
			"Gender":         string(p.Gender),
			"Special Needs":  p.SpecialNeeds,
			"Payment Status": string(p.PaymentStatus),
		})
	}
	return ds
}

// AssignmentsDataset lists assignments with the names resolved through the lookups
func AssignmentsDataset(assignments []models.Assignment, participantName, familyName func(id string) string) Dataset {
	ds := Dataset{
		Title:   "Assignments",
		Headers: []string{"Participant ID", "Participant Name", "Host Family ID", "Host Family Name"},
	}
	for _, a := range assignments {
		ds.Rows = append(ds.Rows, map[string]string{
			"Participant ID":   a.ParticipantID,
			"Participant Name": participantName(a.ParticipantID),
			"Host Family ID":   a.HostFamilyID,
			"Host Family Name": familyName(a.HostFamilyID),
		})
	}
	return ds
}

// RenderCSV produces CSV encoded bytes for the dataset.
func RenderCSV(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPDF creates a landscape PDF document with the dataset as a table.
func RenderPDF(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(data.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 9)
	colWidth := 277.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
