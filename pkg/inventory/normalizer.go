package inventory

import (
	"fmt"
)

// NormalizationError marks a payload that cannot be turned into a Record
// because a required identity field is absent. Callers drop the record and
// log it; a single bad payload never fails its family.
type NormalizationError struct {
	Field    string
	NativeID string
	Family   Family
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s %q: missing required field %q", e.Family, e.NativeID, e.Field)
}

// Normalize converts a collector payload into a canonical Record. It is a
// pure function of its input: no I/O, no clock, no mutation of the payload.
func Normalize(p Payload) (Record, error) {
	if !p.Provider.Valid() {
		return Record{}, &NormalizationError{Field: "provider", NativeID: p.NativeID, Family: p.Family}
	}
	if p.Family == "" {
		return Record{}, &NormalizationError{Field: "resource_family", NativeID: p.NativeID}
	}
	if p.NativeID == "" {
		return Record{}, &NormalizationError{Field: "native_id", Family: p.Family}
	}
	if p.Region == "" {
		return Record{}, &NormalizationError{Field: "region", NativeID: p.NativeID, Family: p.Family}
	}

	tags := make(map[string]string, len(p.Tags))
	for k, v := range p.Tags {
		tags[k] = v
	}
	signals := make(map[string]*float64, len(p.Signals))
	for k, v := range p.Signals {
		if v == nil {
			signals[k] = nil
			continue
		}
		val := *v
		signals[k] = &val
	}

	var age *float64
	if p.AgeDays != nil {
		v := *p.AgeDays
		if v < 0 {
			v = 0
		}
		age = &v
	}

	return Record{
		IdentityKey: identityKey(p.Provider, p.Region, p.NativeID),
		Family:      p.Family,
		Provider:    p.Provider,
		Region:      p.Region,
		NativeID:    p.NativeID,
		AgeDays:     age,
		State:       p.State,
		Tags:        tags,
		Size:        p.Size,
		Signals:     signals,
	}, nil
}

// NormalizeAll converts a batch of payloads, partitioning failures out
// instead of aborting. The caller logs the errors and continues.
func NormalizeAll(payloads []Payload) ([]Record, []error) {
	records := make([]Record, 0, len(payloads))
	var errs []error
	for _, p := range payloads {
		rec, err := Normalize(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}
