package bdd

import (
	"testing"

	messages "github.com/cucumber/messages/go/v21"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/shopflow/internal/journey"
)

func table(rows ...[]string) *messages.PickleTable {
	t := &messages.PickleTable{}
	for _, r := range rows {
		row := &messages.PickleTableRow{}
		for _, v := range r {
			row.Cells = append(row.Cells, &messages.PickleTableCell{Value: v})
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func TestCheckoutFromTable(t *testing.T) {
	got, err := checkoutFromTable(table(
		[]string{"Name", " John Doe "},
		[]string{"country", "United States"},
		[]string{"city", "New York"},
		[]string{"card", "1234567890123456"},
		[]string{"month", "12"},
		[]string{"year", "2025"},
	))
	require.NoError(t, err)
	assert.Equal(t, journey.CheckoutDetails{
		Name: "John Doe", Country: "United States", City: "New York",
		Card: "1234567890123456", Month: "12", Year: "2025",
	}, got)

	_, err = checkoutFromTable(table([]string{"zip", "10001"}))
	assert.EqualError(t, err, `unknown checkout field "zip"`)

	_, err = checkoutFromTable(table([]string{"name"}))
	assert.EqualError(t, err, "checkout table row 1 has 1 cells, want 2")

	_, err = checkoutFromTable(nil)
	assert.Error(t, err)
}
