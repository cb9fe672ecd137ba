package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
)

var (
	timeShape      = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)
	canonicalShape = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
)

// NormalizeTime canonicalises H:MM, HH:MM or HH:MM:SS into HH:MM:SS.
// Anything else yields models.TimeSentinel.
func NormalizeTime(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" || !timeShape.MatchString(value) {
		return models.TimeSentinel
	}

	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return models.TimeSentinel
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour > 23 {
		return models.TimeSentinel
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute > 59 {
		return models.TimeSentinel
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second > 59 {
			return models.TimeSentinel
		}
	}

	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second)
}

// IsCanonicalTime reports whether value is already HH:MM:SS within range.
func IsCanonicalTime(value string) bool {
	return canonicalShape.MatchString(value) && NormalizeTime(value) == value
}
