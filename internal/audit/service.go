package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"portal/kit/broker"
	"portal/kit/observability"
)

// Entry is one administrative action recorded for compliance review,
// kept outside the payment ledger.
type Entry struct {
	ID       string         `json:"id"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Resource string         `json:"resource"`
	Before   any            `json:"before,omitempty"`
	After    any            `json:"after,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
	At       time.Time      `json:"at"`
}

type Service struct {
	logger *observability.Logger
	fileMu sync.Mutex
	f      *os.File
}

func NewService(logger *observability.Logger) *Service {
	return &Service{logger: logger}
}

func NewServiceWithFile(logger *observability.Logger, path string) (*Service, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		if logger != nil {
			logger.Error("audit error", "layer", "service", "component", "audit", "method", "NewServiceWithFile", "path", path, "error", err.Error())
		}
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		if logger != nil {
			logger.Error("audit error", "layer", "service", "component", "audit", "method", "NewServiceWithFile", "path", path, "error", err.Error())
		}
		return nil, err
	}
	return &Service{logger: logger, f: f}, nil
}

func (s *Service) Close() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	if err != nil && s.logger != nil {
		s.logger.Error("audit error", "layer", "service", "component", "audit", "method", "Close", "error", err.Error())
	}
	s.f = nil
	return err
}

// Record appends one entry. Audit failures are logged, never propagated;
// compliance logging must not block the operation it describes.
func (s *Service) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	if s.logger != nil {
		s.logger.Info("audit", "actor", e.Actor, "action", e.Action, "resource", e.Resource)
	}
	s.write(e)
}

// HandleAny subscribes the audit trail to every payment event on the bus.
func (s *Service) HandleAny(ctx context.Context, evt broker.Event) error {
	s.Record(ctx, Entry{
		Actor:    "system",
		Action:   evt.Name(),
		Resource: partitionKey(evt),
		Fields:   map[string]any{"event": evt},
	})
	return nil
}

func partitionKey(evt broker.Event) string {
	if pk, ok := evt.(interface{ PartitionKey() string }); ok {
		return pk.PartitionKey()
	}
	return ""
}

func (s *Service) write(e Entry) {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.f == nil {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("audit error", "layer", "service", "component", "audit", "method", "write", "action", e.Action, "error", err.Error())
		}
		return
	}
	if _, err := s.f.Write(append(b, '\n')); err != nil && s.logger != nil {
		s.logger.Error("audit error", "layer", "service", "component", "audit", "method", "write", "action", e.Action, "error", err.Error())
	}
}
