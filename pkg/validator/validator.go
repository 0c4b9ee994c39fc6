package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidateStruct validates a struct based on validate tags
// This is a basic implementation. For production use, consider using go-playground/validator
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)
		tag := field.Tag.Get("validate")

		if tag == "" {
			continue
		}

		// Parse validate tag
		rules := strings.Split(tag, ",")
		for _, rule := range rules {
			if err := validateField(field.Name, value, rule); err != nil {
				return err
			}
		}
	}

	return nil
}

// validateField validates a single field based on a rule
func validateField(fieldName string, value reflect.Value, rule string) error {
	switch rule {
	case "required":
		if isZero(value) {
			return fmt.Errorf("%s is required", fieldName)
		}
	case "email":
		if value.Kind() == reflect.String {
			if err := ValidateEmail(value.String()); err != nil {
				return fmt.Errorf("%s must be a valid email", fieldName)
			}
		}
	case "cpf":
		if value.Kind() == reflect.String && value.String() != "" {
			if err := ValidateCPF(value.String()); err != nil {
				return fmt.Errorf("%s must be a valid CPF", fieldName)
			}
		}
	default:
		// Check for min=X format
		if strings.HasPrefix(rule, "min=") {
			minStr := strings.TrimPrefix(rule, "min=")
			var minVal int
			fmt.Sscanf(minStr, "%d", &minVal)
			if value.Kind() == reflect.String && len(value.String()) < minVal {
				return fmt.Errorf("%s must be at least %d characters", fieldName, minVal)
			}
		}
	}
	return nil
}

// isZero checks if a value is zero/empty
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateCPF checks a Brazilian CPF number, with or without punctuation,
// including both check digits
func ValidateCPF(cpf string) error {
	digits := NormalizeCPF(cpf)
	if len(digits) != 11 {
		return errors.New("CPF must have 11 digits")
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return errors.New("invalid CPF")
	}

	check := func(n int) byte {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(digits[i]-'0') * (n + 1 - i)
		}
		d := sum * 10 % 11
		if d == 10 {
			d = 0
		}
		return byte('0' + d)
	}
	if digits[9] != check(9) || digits[10] != check(10) {
		return errors.New("invalid CPF")
	}
	return nil
}

// NormalizeCPF strips everything but digits
func NormalizeCPF(cpf string) string {
	var b strings.Builder
	for _, r := range cpf {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePassword validates a password
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New("password is required")
	}
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	return nil
}

// ValidateRequired validates that a field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// SanitizeString sanitizes a string by removing potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")
	// Trim whitespace
	s = strings.TrimSpace(s)
	return s
}

// SanitizeEmail sanitizes an email address
func SanitizeEmail(email string) string {
	email = SanitizeString(email)
	email = strings.ToLower(email)
	return email
}
