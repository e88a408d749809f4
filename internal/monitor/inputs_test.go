package monitor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSyntheticInputs_KnownSubjects(t *testing.T) {
	prompts := []string{
		"Enter first name: ",
		"Enter second age: ",
		"Enter third num1: ",
		"What is your email? ",
		"Enter the price: ",
		"Continue? (yes/no) ",
		"Pick an option: ",
		"Favourite colour: ",
	}
	want := []string{"TestUser", "25", "42", "test@example.com", "99.99", "y", "1", "blue"}
	if diff := cmp.Diff(want, SyntheticInputs(prompts)); diff != "" {
		t.Errorf("SyntheticInputs mismatch (-want +got):\n%s", diff)
	}
}

func TestSyntheticInputs_ShortWordsMatchWholeTokens(t *testing.T) {
	// "no" inside "another" and "tel" inside "hotel" must not match.
	got := SyntheticInputs([]string{"Enter another value: ", "Pick a hotel: "})
	assert.Equal(t, []string{"test_first_value", "test_second_value"}, got)
}

func TestSyntheticInputs_PlaceholderPool(t *testing.T) {
	prompts := make([]string, 7)
	for i := range prompts {
		prompts[i] = "Enter value: "
	}
	got := SyntheticInputs(prompts)
	assert.Equal(t, "test_first_value", got[0])
	assert.Equal(t, "test_fifth_value", got[4])
	assert.Equal(t, "test_first_value_6", got[5])
	assert.Equal(t, "test_second_value_7", got[6])
	assert.Len(t, got, 7)
}

func TestSyntheticInputs_Empty(t *testing.T) {
	assert.Empty(t, SyntheticInputs(nil))
}
