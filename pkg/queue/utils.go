package queue

import (
	"fmt"
	"strings"
)

// qualifiedStructName derives a stable task name from the payload type,
// e.g. "issuance.IssueLicense".
func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
