package postcodelookup

import "postcode-workers/internal/models"

type Input struct {
	Postcode      string `json:"postcode"`
	OverrideCache bool   `json:"overrideCache"`
}

// Output is written back to the process instance as job variables.
type Output = models.LookupResult
