package resolver

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// parsedIntent carries parse failures as data so they survive the graph
// without being wrapped by the runtime.
type parsedIntent struct {
	Raw    string
	Intent intentReply
	Err    error
}

func compileIntentGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, parsedIntent], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{message}"),
	)

	graph := compose.NewGraph[map[string]any, parsedIntent]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add intent prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add intent model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_intent",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (parsedIntent, error) {
			if msg == nil {
				return parsedIntent{Err: errEmptyReply}, nil
			}
			reply, err := parseIntentReply(msg.Content)
			return parsedIntent{Raw: msg.Content, Intent: reply, Err: err}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add intent parser node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prompt"},
		{"prompt", "model"},
		{"model", "parse_intent"},
		{"parse_intent", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add intent edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("resolver.intent_graph"))
	if err != nil {
		return nil, fmt.Errorf("compile intent graph: %w", err)
	}
	return runner, nil
}
