package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateStruct runs `validate:"..."` tags and flattens failures into one error.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	fields := make([]string, 0, len(validationErrors))
	for _, ve := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s(%s)", ve.Field(), ve.Tag()))
	}
	return fmt.Errorf("invalid input: %s", strings.Join(fields, ", "))
}

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizePhoneNumber parses a spoken/typed phone number and returns it in E.164.
func NormalizePhoneNumber(phoneNumber, region string) (string, error) {
	p, err := libphonenumber.Parse(phoneNumber, region)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}
