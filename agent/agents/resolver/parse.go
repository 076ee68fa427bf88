package resolver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	actionx "github.com/tanpawarit/kirana-assistant/agent/action"
	contractx "github.com/tanpawarit/kirana-assistant/agent/contract"
	llmx "github.com/tanpawarit/kirana-assistant/agent/llm"
)

var errEmptyReply = fmt.Errorf("%w: empty model reply", contractx.ErrSchemaViolation)

type intentReply struct {
	Action   string         `json:"action"`
	Params   map[string]any `json:"params"`
	Speech   string         `json:"speech"`
	Response string         `json:"response"`
	Content  string         `json:"content"`
}

func parseIntentReply(content string) (intentReply, error) {
	if strings.TrimSpace(content) == "" {
		return intentReply{}, errEmptyReply
	}
	payload, ok := llmx.ExtractJSON(content, '{', '}')
	if !ok {
		return intentReply{}, fmt.Errorf("%w: no JSON object in reply", contractx.ErrSchemaViolation)
	}
	if err := actionx.Validate([]byte(payload)); err != nil {
		return intentReply{}, err
	}

	var reply intentReply
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	if err := dec.Decode(&reply); err != nil {
		return intentReply{}, fmt.Errorf("%w: decode reply: %v", contractx.ErrSchemaViolation, err)
	}
	return reply, nil
}

// toIntent builds the tagged union from a schema-valid reply.
func toIntent(reply intentReply) (contractx.ResolvedIntent, error) {
	action := contractx.Action(strings.TrimSpace(reply.Action))
	if !action.Valid() {
		return contractx.ResolvedIntent{}, fmt.Errorf("%w: unsupported action=%q", contractx.ErrSchemaViolation, reply.Action)
	}

	params := reply.Params
	if params == nil {
		params = map[string]any{}
	}
	response := strings.TrimSpace(reply.Response)
	if response == "" {
		response = strings.TrimSpace(reply.Content)
	}

	intent := contractx.ResolvedIntent{
		Action:   action,
		Params:   params,
		Speech:   strings.TrimSpace(reply.Speech),
		Response: response,
	}

	switch action {
	case contractx.ActionRecordSale:
		intent.Command = contractx.RecordSale{
			Product:  stringParam(params, "product"),
			Quantity: contractx.Quantity{Raw: params["quantity"]},
			Unit:     stringParam(params, "unit"),
		}
	case contractx.ActionUpdateStock:
		intent.Command = contractx.UpdateStock{
			Product:  stringParam(params, "product"),
			Quantity: contractx.Quantity{Raw: params["quantity"]},
			Unit:     stringParam(params, "unit"),
		}
	case contractx.ActionGetInfo:
		qt := contractx.QueryType(stringParam(params, "query_type"))
		if qt == "" {
			qt = contractx.QueryGeneral
		}
		intent.Command = contractx.GetInfo{QueryType: qt, Product: stringParam(params, "product")}
	default:
		intent.Command = contractx.NoAction{}
	}
	return intent, nil
}

func stringParam(params map[string]any, key string) string {
	v, ok := params[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
