package customer_test

import (
	"testing"

	"customer-service/internal/domain/customer"

	"github.com/stretchr/testify/assert"
)

func TestCustomer_Clone(t *testing.T) {
	orig := &customer.Customer{ID: "876", Rev: "1-abc", Username: "yooyo"}

	cp := orig.Clone()
	cp.Rev = "2-def"

	assert.Equal(t, "1-abc", orig.Rev, "Clone must not alias the original")
	assert.Equal(t, "yooyo", cp.Username)
	assert.Nil(t, (*customer.Customer)(nil).Clone())
}

func TestCustomer_SameContent(t *testing.T) {
	a := &customer.Customer{ID: "1", Rev: "1-a", Username: "yooyo", Email: "helloworld@gmail.com"}
	b := &customer.Customer{ID: "2", Rev: "9-z", Username: "yooyo", Email: "helloworld@gmail.com"}

	assert.True(t, a.SameContent(b), "ID and Rev are ignored")

	b.Email = "other@gmail.com"
	assert.False(t, a.SameContent(b))
}

func TestNewCustomerID(t *testing.T) {
	id := customer.NewCustomerID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, customer.NewCustomerID())
}
