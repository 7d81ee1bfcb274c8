package postprocess

import "github.com/pkg/errors"

// ErrClassOutOfRange is returned when a region's class id has no threshold.
// It points at a vocabulary/model mismatch, never at bad user input.
var ErrClassOutOfRange = errors.New("class id has no configured threshold")

// Filter keeps the regions whose class is not excluded and whose confidence
// reaches the class threshold (inclusive). Survivors keep their input order.
//
// Arguments:
//   - regions: The regions to filter. The slice is not modified.
//   - table: The resolved threshold table.
//
// Returns:
//   - []Region: The surviving regions.
//   - error: ErrClassOutOfRange when a non-excluded region's class id is not covered by the table.
func Filter(regions []Region, table *ThresholdTable) ([]Region, error) {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		if table.Excluded(r.ClassName) {
			continue
		}
		threshold, ok := table.Threshold(r.ClassID)
		if !ok {
			return nil, errors.Wrapf(ErrClassOutOfRange, "class id %d (%s), table covers %d classes",
				r.ClassID, r.ClassName, table.Len())
		}
		if r.Confidence >= threshold {
			out = append(out, r)
		}
	}
	return out, nil
}
