package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================
// Test Group 2: ValidateTimezone
// ============================================================

func TestValidateTimezone_Valid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
	}{
		{"UTC", "UTC"},
		{"America/New_York", "America/New_York"},
		{"America/Los_Angeles", "America/Los_Angeles"},
		{"Europe/London", "Europe/London"},
		{"Europe/Paris", "Europe/Paris"},
		{"Asia/Tokyo", "Asia/Tokyo"},
		{"Asia/Shanghai", "Asia/Shanghai"},
		{"Australia/Sydney", "Australia/Sydney"},
		{"Local", "Local"}, // Special: system local time
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimezone(tt.timezone)
			assert.NoError(t, err, "Expected valid timezone: %s", tt.timezone)
		})
	}
}

func TestValidateTimezone_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
	}{
		{"empty string", ""},
		{"invalid name", "Invalid/Timezone"},
		{"not a timezone", "NotATimezone"},
		{"random text", "random text"},
		{"UTC offset wrong format", "+09:00"}, // Not IANA name
		{"typo in name", "Aisa/Tokyo"},        // Common typo
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimezone(tt.timezone)
			assert.Error(t, err, "Expected error for invalid timezone: %s", tt.timezone)
			assert.Contains(t, err.Error(), "invalid timezone", "Error should mention 'invalid timezone'")
		})
	}
}

func TestValidateTimezone_ErrorMessage(t *testing.T) {
	err := ValidateTimezone("Invalid/Zone")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone 'Invalid/Zone'", "Error should include the timezone value")
}

// ============================================================
// Test Group 3: ValidateDuration
// ============================================================

func TestValidateDuration_Valid(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		min      time.Duration
		max      time.Duration
	}{
		{"exactly min", 10 * time.Second, 10 * time.Second, 1 * time.Minute},
		{"exactly max", 1 * time.Minute, 10 * time.Second, 1 * time.Minute},
		{"middle of range", 30 * time.Second, 10 * time.Second, 1 * time.Minute},
		{"very small range", 5 * time.Second, 5 * time.Second, 5 * time.Second},
		{"large values", 24 * time.Hour, 1 * time.Hour, 48 * time.Hour},
		{"nanoseconds", 500 * time.Nanosecond, 100 * time.Nanosecond, 1 * time.Microsecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDuration(tt.duration, tt.min, tt.max)
			assert.NoError(t, err, "Expected valid duration: %v in [%v, %v]", tt.duration, tt.min, tt.max)
		})
	}
}

func TestValidateDuration_BelowMin(t *testing.T) {
	err := ValidateDuration(5*time.Second, 10*time.Second, 1*time.Minute)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum", "Error should mention 'below minimum'")
	assert.Contains(t, err.Error(), "5s", "Error should include actual value")
	assert.Contains(t, err.Error(), "10s", "Error should include minimum value")
}

func TestValidateDuration_ExceedsMax(t *testing.T) {
	err := ValidateDuration(2*time.Minute, 10*time.Second, 1*time.Minute)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum", "Error should mention 'exceeds maximum'")
	assert.Contains(t, err.Error(), "2m", "Error should include actual value")
	assert.Contains(t, err.Error(), "1m", "Error should include maximum value")
}

func TestValidateDuration_InvalidRange(t *testing.T) {
	// min > max (invalid range)
	err := ValidateDuration(30*time.Second, 1*time.Minute, 10*time.Second)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range", "Error should mention 'invalid range'")
	assert.Contains(t, err.Error(), "min", "Error should mention 'min'")
	assert.Contains(t, err.Error(), "max", "Error should mention 'max'")
}

func TestValidateDuration_NegativeValues(t *testing.T) {
	// Negative duration below negative min
	err := ValidateDuration(-30*time.Second, -10*time.Second, 10*time.Second)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum")
}

func TestValidateDuration_ZeroValues(t *testing.T) {
	// Zero duration is valid if within range
	err := ValidateDuration(0, 0, 10*time.Second)
	assert.NoError(t, err)
}

// ============================================================
// Test Group 4: ValidateIntRange
// ============================================================

func TestValidateIntRange_Valid(t *testing.T) {
	tests := []struct {
		name  string
		value int
		min   int
		max   int
	}{
		{"exactly min", 1, 1, 10},
		{"exactly max", 10, 1, 10},
		{"middle of range", 5, 1, 10},
		{"single value range", 5, 5, 5},
		{"large values", 1000, 100, 10000},
		{"negative range", -5, -10, -1},
		{"zero in range", 0, -10, 10},
		{"negative to positive", -5, -100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntRange(tt.value, tt.min, tt.max)
			assert.NoError(t, err, "Expected valid value: %d in [%d, %d]", tt.value, tt.min, tt.max)
		})
	}
}

func TestValidateIntRange_BelowMin(t *testing.T) {
	err := ValidateIntRange(0, 1, 10)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "below minimum", "Error should mention 'below minimum'")
	assert.Contains(t, err.Error(), "0", "Error should include actual value")
	assert.Contains(t, err.Error(), "1", "Error should include minimum value")
}

func TestValidateIntRange_ExceedsMax(t *testing.T) {
	err := ValidateIntRange(11, 1, 10)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum", "Error should mention 'exceeds maximum'")
	assert.Contains(t, err.Error(), "11", "Error should include actual value")
	assert.Contains(t, err.Error(), "10", "Error should include maximum value")
}

func TestValidateIntRange_InvalidRange(t *testing.T) {
	// min > max (invalid range)
	err := ValidateIntRange(5, 10, 1)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid range", "Error should mention 'invalid range'")
	assert.Contains(t, err.Error(), "min", "Error should mention 'min'")
	assert.Contains(t, err.Error(), "max", "Error should mention 'max'")
}

func TestValidateIntRange_LargeBoundaries(t *testing.T) {
	// Test with very large numbers
	tests := []struct {
		name  string
		value int
		min   int
		max   int
		valid bool
	}{
		{"max int", 2147483647, 0, 2147483647, true},
		{"min int", -2147483648, -2147483648, 0, true},
		{"overflow max", 2147483647, 0, 2147483646, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntRange(tt.value, tt.min, tt.max)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// ============================================================
// Test Group 5: ValidatePositiveDuration
// ============================================================

func TestValidatePositiveDuration_Valid(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
	}{
		{"1 nanosecond", 1 * time.Nanosecond},
		{"1 microsecond", 1 * time.Microsecond},
		{"1 millisecond", 1 * time.Millisecond},
		{"1 second", 1 * time.Second},
		{"1 minute", 1 * time.Minute},
		{"1 hour", 1 * time.Hour},
		{"24 hours", 24 * time.Hour},
		{"very large", 1000 * time.Hour},
		{"30 minutes", 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveDuration(tt.duration)
			assert.NoError(t, err, "Expected positive duration to be valid: %v", tt.duration)
		})
	}
}

func TestValidatePositiveDuration_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
	}{
		{"zero", 0},
		{"negative 1 second", -1 * time.Second},
		{"negative 1 minute", -1 * time.Minute},
		{"negative 1 hour", -1 * time.Hour},
		{"very negative", -1000 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveDuration(tt.duration)
			assert.Error(t, err, "Expected error for non-positive duration: %v", tt.duration)
			assert.Contains(t, err.Error(), "must be positive", "Error should mention 'must be positive'")
		})
	}
}

func TestValidatePositiveDuration_ErrorMessage(t *testing.T) {
	err := ValidatePositiveDuration(-30 * time.Minute)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duration must be positive", "Error should mention 'duration must be positive'")
	assert.Contains(t, err.Error(), "-30m", "Error should include the duration value")
}

func TestValidatePositiveDuration_ZeroIsInvalid(t *testing.T) {
	// Zero is not positive (explicitly test this edge case)
	err := ValidatePositiveDuration(0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")
	assert.Contains(t, err.Error(), "0s")
}

// ============================================================
// Test Group 6: Edge Cases and Integration
// ============================================================

func TestValidators_ConsistentErrorMessages(t *testing.T) {
	// All validators should return descriptive errors with actual values
	t.Run("timezone error has value", func(t *testing.T) {
		err := ValidateTimezone("Invalid/Zone")
		assert.Contains(t, err.Error(), "Invalid/Zone")
	})

	t.Run("duration error has value", func(t *testing.T) {
		err := ValidateDuration(5*time.Second, 10*time.Second, 1*time.Minute)
		assert.Contains(t, err.Error(), "5s")
	})

	t.Run("int range error has value", func(t *testing.T) {
		err := ValidateIntRange(0, 1, 10)
		assert.Contains(t, err.Error(), "0")
	})

	t.Run("positive duration error has value", func(t *testing.T) {
		err := ValidatePositiveDuration(-5 * time.Second)
		assert.Contains(t, err.Error(), "-5s")
	})
}

func TestValidators_NilErrors(t *testing.T) {
	// Valid inputs should return nil, not a zero-value error
	t.Run("timezone returns nil", func(t *testing.T) {
		err := ValidateTimezone("UTC")
		assert.Nil(t, err)
	})

	t.Run("duration returns nil", func(t *testing.T) {
		err := ValidateDuration(30*time.Second, 10*time.Second, 1*time.Minute)
		assert.Nil(t, err)
	})

	t.Run("int range returns nil", func(t *testing.T) {
		err := ValidateIntRange(5, 1, 10)
		assert.Nil(t, err)
	})

	t.Run("positive duration returns nil", func(t *testing.T) {
		err := ValidatePositiveDuration(30 * time.Second)
		assert.Nil(t, err)
	})
}

// ============================================================
// Test Group 7: Performance and Boundary Tests
// ============================================================

func TestValidateTimezone_AllCommonTimezones(t *testing.T) {
	// Test a comprehensive list of common timezones
	timezones := []string{
		// UTC and GMT
		"UTC", "GMT",
		// Americas
		"America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles",
		"America/Toronto", "America/Vancouver", "America/Mexico_City",
		"America/Sao_Paulo", "America/Argentina/Buenos_Aires",
		// Europe
		"Europe/London", "Europe/Paris", "Europe/Berlin", "Europe/Rome",
		"Europe/Madrid", "Europe/Amsterdam", "Europe/Stockholm", "Europe/Moscow",
		// Asia
		"Asia/Tokyo", "Asia/Shanghai", "Asia/Hong_Kong", "Asia/Singapore",
		"Asia/Seoul", "Asia/Bangkok", "Asia/Dubai", "Asia/Kolkata",
		// Pacific
		"Australia/Sydney", "Australia/Melbourne", "Pacific/Auckland",
		// Africa
		"Africa/Cairo", "Africa/Johannesburg",
	}

	for _, tz := range timezones {
		t.Run(tz, func(t *testing.T) {
			err := ValidateTimezone(tz)
			assert.NoError(t, err, "Common timezone should be valid: %s", tz)
		})
	}
}

func TestValidateDuration_EdgeCaseBoundaries(t *testing.T) {
	// Test edge cases around boundaries
	tests := []struct {
		name     string
		duration time.Duration
		min      time.Duration
		max      time.Duration
		valid    bool
	}{
		{"just below min", 9 * time.Second, 10 * time.Second, 1 * time.Minute, false},
		{"just at min", 10 * time.Second, 10 * time.Second, 1 * time.Minute, true},
		{"just above min", 11 * time.Second, 10 * time.Second, 1 * time.Minute, true},
		{"just below max", 59 * time.Second, 10 * time.Second, 1 * time.Minute, true},
		{"just at max", 1 * time.Minute, 10 * time.Second, 1 * time.Minute, true},
		{"just above max", 61 * time.Second, 10 * time.Second, 1 * time.Minute, false},
		{"min equals max", 5 * time.Second, 5 * time.Second, 5 * time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDuration(tt.duration, tt.min, tt.max)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateIntRange_EdgeCaseBoundaries(t *testing.T) {
	// Test edge cases around boundaries
	tests := []struct {
		name  string
		value int
		min   int
		max   int
		valid bool
	}{
		{"just below min", 0, 1, 10, false},
		{"just at min", 1, 1, 10, true},
		{"just above min", 2, 1, 10, true},
		{"just below max", 9, 1, 10, true},
		{"just at max", 10, 1, 10, true},
		{"just above max", 11, 1, 10, false},
		{"min equals max", 5, 5, 5, true},
		{"negative boundary", -1, 0, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIntRange(tt.value, tt.min, tt.max)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
