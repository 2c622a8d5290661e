package bugs

import (
	"fmt"
	"strings"
)

var validStatuses = []Status{
	StatusNew,
	StatusIncomplete,
	StatusOpinion,
	StatusInvalid,
	StatusWontFix,
	StatusExpired,
	StatusConfirmed,
	StatusTriaged,
	StatusInProgress,
	StatusFixCommitted,
	StatusFixReleased,
	StatusDoesNotExist,
	StatusUnknown,
}

var validImportances = []Importance{
	ImportanceUnknown,
	ImportanceUndecided,
	ImportanceCritical,
	ImportanceHigh,
	ImportanceMedium,
	ImportanceLow,
	ImportanceWishlist,
}

func IsValidStatus(s Status) bool {
	for _, v := range validStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func IsValidImportance(i Importance) bool {
	for _, v := range validImportances {
		if v == i {
			return true
		}
	}
	return false
}

// ParseStatus accepts any casing and "_" or "-" for spaces, so "fix_released"
// and "Fix Released" are the same status. Empty input stays empty.
func ParseStatus(raw string) (Status, error) {
	key := normalizeEnum(raw)
	if key == "" {
		return "", nil
	}
	for _, v := range validStatuses {
		if normalizeEnum(string(v)) == key {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
}

func ParseImportance(raw string) (Importance, error) {
	key := normalizeEnum(raw)
	if key == "" {
		return "", nil
	}
	for _, v := range validImportances {
		if normalizeEnum(string(v)) == key {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown importance %q", ErrInvalidInput, raw)
}

func normalizeEnum(raw string) string {
	r := strings.NewReplacer("_", " ", "-", " ", "'", "")
	return strings.Join(strings.Fields(strings.ToLower(r.Replace(raw))), " ")
}

func validateEnums(r Report) error {
	if r.Status != "" && !IsValidStatus(r.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, r.Status)
	}
	if r.Importance != "" && !IsValidImportance(r.Importance) {
		return fmt.Errorf("%w: unknown importance %q", ErrInvalidInput, r.Importance)
	}
	return nil
}
