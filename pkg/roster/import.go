package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arnavshah/homestay-api/pkg/models"
)

// ReadParticipantsCSV parses participants from a CSV file with the header
// id,name,age,gender,special_needs,payment_status. Column order is free.
func ReadParticipantsCSV(r io.Reader) ([]models.Participant, error) {
	rows, err := readRows(r, "id", "name", "age", "gender")
	if err != nil {
		return nil, fmt.Errorf("participants csv: %w", err)
	}

	out := make([]models.Participant, 0, len(rows))
	for i, row := range rows {
		age, err := atoi(row["age"])
		if err != nil {
			return nil, fmt.Errorf("participants csv line %d: age: %w", i+2, err)
		}
		status := models.PaymentStatus(strings.ToLower(row["payment_status"]))
		if status == "" {
			status = models.PaymentUnpaid
		}
		out = append(out, models.Participant{
			ID:            row["id"],
			Name:          row["name"],
			Age:           age,
			Gender:        models.Gender(strings.ToLower(row["gender"])),
			SpecialNeeds:  specialNeeds(row["special_needs"]),
			PaymentStatus: status,
		})
	}
	return out, nil
}

// specialNeeds drops the placeholders spreadsheets use for "nothing declared"
func specialNeeds(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "no", "n", "none", "false", "n/a", "na", "-":
		return ""
	}
	return strings.TrimSpace(v)
}

// ReadFamiliesCSV parses host families from a CSV file with the header
// id,name,address,capacity,current_assignments,preferred_gender,age_min,age_max,special_needs,verification_status.
func ReadFamiliesCSV(r io.Reader) ([]models.HostFamily, error) {
	rows, err := readRows(r, "id", "name", "capacity")
	if err != nil {
		return nil, fmt.Errorf("families csv: %w", err)
	}

	out := make([]models.HostFamily, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		capacity, err := atoi(row["capacity"])
		if err != nil {
			return nil, fmt.Errorf("families csv line %d: capacity: %w", line, err)
		}
		current, err := atoi(row["current_assignments"])
		if err != nil {
			return nil, fmt.Errorf("families csv line %d: current_assignments: %w", line, err)
		}

		f := models.HostFamily{
			ID:                 row["id"],
			Name:               row["name"],
			Address:            row["address"],
			Capacity:           capacity,
			CurrentAssignments: current,
			VerificationStatus: models.VerificationStatus(strings.ToLower(row["verification_status"])),
		}

		prefs := models.Preferences{Gender: models.PreferredGender(strings.ToLower(row["preferred_gender"]))}
		if row["age_min"] != "" || row["age_max"] != "" {
			lo, err := atoi(row["age_min"])
			if err != nil {
				return nil, fmt.Errorf("families csv line %d: age_min: %w", line, err)
			}
			hi, err := atoi(row["age_max"])
			if err != nil {
				return nil, fmt.Errorf("families csv line %d: age_max: %w", line, err)
			}
			prefs.AgeRange = &models.AgeRange{Min: lo, Max: hi}
		}
		if sn := row["special_needs"]; sn != "" {
			prefs.SpecialNeeds, err = parseBool(sn)
			if err != nil {
				return nil, fmt.Errorf("families csv line %d: special_needs: %w", line, err)
			}
		}
		if prefs != (models.Preferences{}) {
			f.Preferences = &prefs
		}
		out = append(out, f)
	}
	return out, nil
}

// readRows reads a header line and returns each record keyed by column name
func readRows(r io.Reader, required ...string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]string, len(cols))
		for name, idx := range cols {
			if idx < len(record) {
				row[name] = strings.TrimSpace(record[idx])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(s)
}
