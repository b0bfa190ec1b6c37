package reconciliation

import (
	"context"

	"github.com/stretchr/testify/mock"

	"portal/internal/audit"
	"portal/kit/broker"
)

type AuditMock struct {
	mock.Mock
	AuditContract
}

func (m *AuditMock) Record(ctx context.Context, e audit.Entry) {
	m.Called(ctx, e)
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
