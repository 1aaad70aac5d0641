package table

import "strings"

var characterTypes = map[string]bool{
	"char":      true,
	"varchar":   true,
	"binary":    true,
	"varbinary": true,
}

var datetimeTypes = map[string]bool{
	"date":     true,
	"time":     true,
	"datetime": true,
}

// IsCharacter reports whether dtype holds text
func IsCharacter(dtype string) bool {
	return characterTypes[strings.ToLower(dtype)]
}

// IsNumeric reports whether dtype is a known numeric type. Dates and times
// are numeric.
func IsNumeric(dtype string) bool {
	return dtype != "" && !IsCharacter(dtype)
}

// IsDatetime reports whether dtype is a date, time or datetime
func IsDatetime(dtype string) bool {
	return datetimeTypes[strings.ToLower(dtype)]
}

// matchesDtype reports whether dtype belongs to a type class used by SelectDtypes
func matchesDtype(dtype, class string) bool {
	switch strings.ToLower(class) {
	case "number", "numeric":
		return IsNumeric(dtype)
	case "character", "string", "object", "text":
		return IsCharacter(dtype)
	case "datetime64", "temporal":
		return IsDatetime(dtype)
	}
	return strings.EqualFold(dtype, class)
}
