// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reduction

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
)

// CSVRow is one decoded data row of a batch upload. Index is 1-based
// over data rows (the header does not count).
type CSVRow struct {
	Index int
	Date  string
	Time  string
	Input EntryInput
}

// ParseCSV decodes a methodology-shaped CSV stream. Decodable rows are
// returned in file order; rows that fail to decode land in the error
// list and do not block the rest of the file. A malformed header fails
// the whole file.
//
// Column shapes per methodology:
//
//	M1: value[,date][,time]
//	M2: one column per formula symbol, or a single "variables" column
//	    holding a JSON object[,date][,time]
//	M3: itemId_variableName columns (B1_A, P2_EF, ...)[,date][,time]
func ParseCSV(r io.Reader, m Methodology) ([]CSVRow, []RowError, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, Errorf(KindValidation, "CSV file is empty")
	}
	if err != nil {
		return nil, nil, WrapErr(KindValidation, err, "reading CSV header")
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}
	if err := checkHeader(cols, m); err != nil {
		return nil, nil, err
	}

	var (
		rows    []CSVRow
		rowErrs []RowError
		index   int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		index++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: index, Err: WrapErr(KindValidation, err, "malformed row")})
			continue
		}
		if emptyRecord(record) {
			index--
			continue
		}
		row, err := decodeRow(cols, record, index, m)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: index, Err: err})
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrs, nil
}

func checkHeader(cols []string, m Methodology) error {
	switch m {
	case MethodologyM1:
		if columnIndex(cols, "value") < 0 {
			return Errorf(KindValidation, "M1 CSV requires a value column")
		}
	case MethodologyM2:
		if len(symbolColumns(cols)) == 0 && columnIndex(cols, "variables") < 0 {
			return Errorf(KindValidation, "M2 CSV requires symbol columns or a variables column")
		}
	case MethodologyM3:
		for _, c := range cols {
			if isReservedColumn(c) {
				continue
			}
			if !strings.Contains(c, "_") {
				return Errorf(KindValidation, "M3 CSV column %q is not of the form itemId_variableName", c)
			}
		}
	default:
		return Errorf(KindValidation, "unknown methodology %q", m)
	}
	return nil
}

func decodeRow(cols, record []string, index int, m Methodology) (CSVRow, error) {
	row := CSVRow{Index: index}
	cell := func(name string) string {
		if i := columnIndex(cols, name); i >= 0 && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	row.Date = cell("date")
	row.Time = cell("time")

	switch m {
	case MethodologyM1:
		raw := cell("value")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return row, Errorf(KindValidation, "value must be numeric")
		}
		row.Input.Value = &v

	case MethodologyM2:
		vars := make(map[string]float64)
		if blob := cell("variables"); blob != "" {
			if err := json.Unmarshal([]byte(blob), &vars); err != nil {
				return row, WrapErr(KindValidation, err, "variables column is not a JSON object")
			}
		} else {
			for _, i := range symbolColumns(cols) {
				if i >= len(record) {
					continue
				}
				raw := strings.TrimSpace(record[i])
				if raw == "" {
					continue
				}
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return row, Errorf(KindValidation, "variable %q must be numeric", cols[i])
				}
				vars[cols[i]] = v
			}
		}
		row.Input.Variables = vars

	case MethodologyM3:
		items := make(map[string]map[string]float64)
		for i, c := range cols {
			if isReservedColumn(c) || i >= len(record) {
				continue
			}
			raw := strings.TrimSpace(record[i])
			if raw == "" {
				continue
			}
			itemID, name, ok := strings.Cut(c, "_")
			if !ok || itemID == "" || name == "" {
				return row, Errorf(KindValidation, "column %q is not of the form itemId_variableName", c)
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return row, Errorf(KindValidation, "column %q must be numeric", c)
			}
			if items[itemID] == nil {
				items[itemID] = make(map[string]float64)
			}
			items[itemID][name] = v
		}
		row.Input.Items = items
	}
	return row, nil
}

// symbolColumns returns the indices of M2 symbol columns, skipping the
// reserved names.
func symbolColumns(cols []string) []int {
	var out []int
	for i, c := range cols {
		if isReservedColumn(c) || strings.EqualFold(c, "variables") {
			continue
		}
		out = append(out, i)
	}
	return out
}

func isReservedColumn(name string) bool {
	return strings.EqualFold(name, "date") || strings.EqualFold(name, "time") || strings.EqualFold(name, "value")
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

func emptyRecord(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
