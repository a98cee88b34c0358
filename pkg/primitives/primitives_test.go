package primitives

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionIDString(t *testing.T) {
	assert.Equal(t, "T1", TransactionID(1).String())
	assert.Equal(t, "T42", TransactionID(42).String())
}

func TestTransactionIDSlot(t *testing.T) {
	assert.Equal(t, SlotID(7), TransactionID(7).Slot())
	assert.True(t, TransactionID(0).Slot().Valid())
	assert.False(t, InvalidSlotID.Valid())
}

func TestResourceIDOrdering(t *testing.T) {
	tests := []struct {
		name string
		a, b ResourceID
		less bool
	}{
		{"same segment lower object", NewResourceID(1), NewResourceID(2), true},
		{"same segment higher object", NewResourceID(5), NewResourceID(2), false},
		{"equal", NewResourceID(3), NewResourceID(3), false},
		{"lower segment wins", ResourceID{Segment: 0, Object: 9}, NewResourceID(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.less, tt.a.Less(tt.b))
		})
	}
}

func TestObjectIDValid(t *testing.T) {
	assert.True(t, ObjectID(0).Valid())
	assert.False(t, InvalidObjectID.Valid())
}
