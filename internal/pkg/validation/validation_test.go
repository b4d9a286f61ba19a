package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("alice@example.com"))
	assert.False(t, IsValidEmail("alice@example"))
	assert.False(t, IsValidEmail("not an email"))
	assert.False(t, IsValidEmail(""))
}

func TestIsValidName(t *testing.T) {
	assert.True(t, IsValidName("Alice"))
	assert.True(t, IsValidName("Mary-Jane O'Brien"))
	assert.False(t, IsValidName("Alice123"))
	assert.False(t, IsValidName(""))
}

func TestIsValidAadhaar(t *testing.T) {
	assert.True(t, IsValidAadhaar("111122223333"))
	assert.False(t, IsValidAadhaar("1111"))
	assert.False(t, IsValidAadhaar("11112222333344"))
	assert.False(t, IsValidAadhaar("11112222333a"))
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("9876543210"))
	assert.True(t, IsValidPhone("+91-9876543210"))
	assert.False(t, IsValidPhone("123"))
	assert.False(t, IsValidPhone("abcdefghij"))
}

func TestIsValidPassword(t *testing.T) {
	assert.True(t, IsValidPassword("password123"))
	assert.False(t, IsValidPassword("short1"))
	assert.False(t, IsValidPassword("allletters"))
	assert.False(t, IsValidPassword("123456789"))
}
