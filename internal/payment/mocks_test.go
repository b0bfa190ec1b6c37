package payment

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"portal/kit/broker"
)

type PricingMock struct {
	mock.Mock
	PricingContract
}

func (m *PricingMock) Amount(purpose Purpose, session string) (decimal.Decimal, string, error) {
	args := m.Called(purpose, session)
	return args.Get(0).(decimal.Decimal), args.String(1), args.Error(2)
}

type PublisherMock struct {
	mock.Mock
	PublisherContract
}

func (m *PublisherMock) Publish(ctx context.Context, evt broker.Event) []error {
	args := m.Called(ctx, evt)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]error)
}
