// Package assistant wires the context assembler, the intent resolver and the
// action executor into one chat turn.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	nodex "github.com/tanpawarit/kirana-assistant/agent/nodes/assistant"
)

var ErrInvalidMessage = nodex.ErrInvalidMessage

type Service struct {
	assembler nodex.Assembler
	resolver  contractx.Resolver
	executor  nodex.Executor

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	assembler nodex.Assembler,
	resolver contractx.Resolver,
	executor nodex.Executor,
) (*Service, error) {
	if assembler == nil {
		return nil, errors.New("context assembler is required")
	}
	if resolver == nil {
		return nil, errors.New("intent resolver is required")
	}
	if executor == nil {
		return nil, errors.New("action executor is required")
	}

	s := &Service{
		assembler: assembler,
		resolver:  resolver,
		executor:  executor,
		now:       time.Now,
	}

	graphRunner, err := s.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// Chat handles one message. The only error is an empty message; model and
// store failures come back as a user-facing reply.
func (s *Service) Chat(ctx context.Context, req contractx.ChatRequest) (contractx.ChatResponse, error) {
	out, err := s.graphRunner.Invoke(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidMessage) {
			return contractx.ChatResponse{}, ErrInvalidMessage
		}
		return contractx.ChatResponse{}, fmt.Errorf("handle message: %w", err)
	}
	return out, nil
}
