package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", ValidateSortOrder("asc"))
	assert.Equal(t, "ASC", ValidateSortOrder(" ASC "))
	assert.Equal(t, "DESC", ValidateSortOrder("desc"))
	assert.Equal(t, "DESC", ValidateSortOrder(""))
	assert.Equal(t, "DESC", ValidateSortOrder("ASC; DROP TABLE stock_movements"))
}

func TestValidateSortField(t *testing.T) {
	assert.Equal(t, "occurred_at", ValidateSortField("occurred_at", MovementSortFields, "occurred_at"))
	assert.Equal(t, "quantity", ValidateSortField(" quantity ", MovementSortFields, "occurred_at"))
	assert.Equal(t, "occurred_at", ValidateSortField("", MovementSortFields, "occurred_at"))
	assert.Equal(t, "occurred_at", ValidateSortField("unit_cost; --", MovementSortFields, "occurred_at"))
	assert.Equal(t, "received_at", ValidateSortField("nope", BatchSortFields, "received_at"))
}
