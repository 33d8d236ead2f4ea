package lookup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"postcode-workers/internal/models"
)

// UpstreamError means the address service answered but the payload carried
// no usable address list.
type UpstreamError struct {
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return models.ErrorUpstreamProblem
	}
	return fmt.Sprintf("%s: %s", models.ErrorUpstreamProblem, e.Detail)
}

// NormalizeOutcome is the result of Normalize. Records is never nil.
type NormalizeOutcome struct {
	Records []models.AddressRecord
	Err     *UpstreamError
}

// upstreamAddress is one RetrieveByParts row. Only mapped fields are read.
type upstreamAddress struct {
	Type          flexString `json:"Type"`
	Company       flexString `json:"Company"`
	Line1         flexString `json:"Line1"`
	Line2         flexString `json:"Line2"`
	PrimaryStreet flexString `json:"PrimaryStreet"`
	PostTown      flexString `json:"PostTown"`
	County        flexString `json:"County"`
	CountryName   flexString `json:"CountryName"`
	Postcode      flexString `json:"Postcode"`
	Udprn         flexString `json:"Udprn"`
}

// flexString accepts a JSON string, number, boolean or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = flexString(strconv.FormatBool(b))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
	}
	return nil
}

// Normalize maps a raw RetrieveByParts payload to address records.
func Normalize(raw []byte) NormalizeOutcome {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return upstreamFailure(vendorDetail(raw))
	}
	if rows == nil {
		return upstreamFailure("")
	}

	if len(rows) == 1 {
		if detail, ok := vendorErrorRow(rows[0]); ok {
			return upstreamFailure(detail)
		}
	}

	records := make([]models.AddressRecord, 0, len(rows))
	for _, row := range rows {
		var a upstreamAddress
		if err := json.Unmarshal(row, &a); err != nil {
			return upstreamFailure(fmt.Sprintf("malformed address row: %v", err))
		}
		records = append(records, a.toRecord())
	}

	return NormalizeOutcome{Records: records}
}

func (a upstreamAddress) toRecord() models.AddressRecord {
	residential := a.Type == "Residential"

	var name *string
	if !residential {
		company := string(a.Company)
		name = &company
	}

	return models.AddressRecord{
		Residential: residential,
		Name:        name,
		Line1:       string(a.Line1),
		Line2:       string(a.Line2),
		Street:      string(a.PrimaryStreet),
		Town:        string(a.PostTown),
		County:      string(a.County),
		Country:     string(a.CountryName),
		Postcode:    string(a.Postcode),
		ID:          string(a.Udprn),
	}
}

func upstreamFailure(detail string) NormalizeOutcome {
	return NormalizeOutcome{
		Records: []models.AddressRecord{},
		Err:     &UpstreamError{Detail: detail},
	}
}

// vendorErrorRow reports whether a row is the vendor's {"Error": ...} sentinel.
func vendorErrorRow(row json.RawMessage) (string, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil {
		return "", false
	}
	if _, ok := fields["Error"]; !ok {
		return "", false
	}
	return describe(fields), true
}

// vendorDetail extracts a description from a top-level error object.
func vendorDetail(raw []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "payload is not valid JSON"
	}
	return describe(fields)
}

func describe(fields map[string]json.RawMessage) string {
	var code, desc flexString
	if v, ok := fields["Error"]; ok {
		_ = json.Unmarshal(v, &code)
	}
	if v, ok := fields["Description"]; ok {
		_ = json.Unmarshal(v, &desc)
	}
	switch {
	case code != "" && desc != "":
		return fmt.Sprintf("%s (error %s)", desc, code)
	case desc != "":
		return string(desc)
	case code != "":
		return fmt.Sprintf("error %s", code)
	}
	return ""
}
