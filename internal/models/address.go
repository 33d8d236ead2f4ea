// internal/models/address.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Source identifies which path produced a LookupResult.
type Source string

const (
	SourceCache Source = "cache"
	SourceAPI   Source = "api"
)

// Human-readable error kinds carried in LookupResult.Error.
const (
	ErrorInvalidPostcode = "Invalid Postcode"
	ErrorLookupFailed    = "Address lookup fail"
	ErrorUpstreamProblem = "Problem fetching Postcode addresses"
	ErrorDetailNoContent = "No content"
)

// AddressRecord is one deliverable address.
type AddressRecord struct {
	Residential bool    `json:"residential"`
	Name        *string `json:"name"`
	Line1       string  `json:"line1"`
	Line2       string  `json:"line2"`
	Street      string  `json:"street"`
	Town        string  `json:"town"`
	County      string  `json:"county"`
	Country     string  `json:"country"`
	Postcode    string  `json:"postcode"`
	ID          string  `json:"id"`
}

// LookupError is the error field of a LookupResult. The empty value means
// success and is encoded as JSON false.
type LookupError string

func (e LookupError) MarshalJSON() ([]byte, error) {
	if e == "" {
		return []byte("false"), nil
	}
	return json.Marshal(string(e))
}

func (e *LookupError) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "false", "null":
		*e = ""
		return nil
	case "true":
		return fmt.Errorf("lookup error: unexpected boolean true")
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("lookup error: %w", err)
	}
	*e = LookupError(s)
	return nil
}

// LookupResult is returned for every lookup, whichever path produced it.
type LookupResult struct {
	Postcode    string          `json:"postcode"`
	Error       LookupError     `json:"error"`
	ErrorDetail string          `json:"errorDetail,omitempty"`
	Source      Source          `json:"source"`
	Data        []AddressRecord `json:"data"`
}

// Failed reports whether the lookup produced an error kind.
func (r *LookupResult) Failed() bool {
	return r.Error != ""
}

// ToJSON serializes a LookupResult.
func ToJSON(result *LookupResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal lookup result: %w", err)
	}
	return string(data), nil
}
