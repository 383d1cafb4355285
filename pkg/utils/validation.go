package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt" // Import bcrypt for password hashing
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

var (
	emailRegex    = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}_.@+\-]+$`)
)

var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"11111111":    {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"iloveyou":    {},
	"letmein1":    {},
	"abc12345":    {},
	"sunshine":    {},
	"football":    {},
	"baseball":    {},
	"welcome1":    {},
	"admin123":    {},
	"trustno1":    {},
	"superman":    {},
	"princess":    {},
}

// IsValidEmail checks if the provided string is a valid email address.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsValidUsername reports whether username uses only letters, digits and @/./+/-/_.
func IsValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// ValidatePassword returns every rule the password breaks. An empty result means it is acceptable.
func ValidatePassword(password, username string) []string {
	var problems []string
	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf(
			"This password is too short. It must contain at least %d characters.", MinPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		problems = append(problems, fmt.Sprintf("This password is too long. It must not exceed %d bytes.", maxPasswordBytes))
	}
	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		problems = append(problems, "The password is too similar to the username.")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		problems = append(problems, "This password is too common.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		problems = append(problems, "This password is entirely numeric.")
	}
	return problems
}

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plaintext password with a hashed password.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var registerOnce sync.Once

// SetupValidator registers the custom tags and json field naming on gin's
// binding validator. Safe to call more than once.
func SetupValidator() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		RegisterValidations(v)
	})
}

// RegisterValidations installs the username and email_or_blank tags and makes
// FieldError.Field report json names.
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return IsValidUsername(fl.Field().String())
	})
	_ = v.RegisterValidation("email_or_blank", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || IsValidEmail(s)
	})
}

// ValidateStruct runs gin's binding validator over obj.
func ValidateStruct(obj interface{}) error {
	SetupValidator()
	return binding.Validator.ValidateStruct(obj)
}

// ValidationMessages converts validator errors into per-field messages. It
// returns nil when err is not a validation error.
func ValidationMessages(err error) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "min":
		if fe.Param() == "1" {
			return "This field may not be blank."
		}
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	case "email_or_blank":
		return "Enter a valid email address."
	default:
		return "Invalid value."
	}
}
