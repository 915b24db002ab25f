package parquetread

import (
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
)

var requiredColumns = []string{"service_code", "name", "points", "class", "valid_from"}

// ValidateSchema checks that the Parquet schema carries the columns a master
// entry cannot be built without. Flag columns may be absent and read as zero.
func ValidateSchema(schema *parquet.Schema) error {
	columns := make(map[string]bool)
	for _, field := range schema.Fields() {
		columns[strings.ToLower(field.Name())] = true
	}

	var missing []string
	for _, col := range requiredColumns {
		if !columns[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("master file missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
