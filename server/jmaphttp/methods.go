package jmaphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/larkmail/lark/filter"
	"github.com/larkmail/lark/logger"
	"github.com/larkmail/lark/mailbox"
	"github.com/larkmail/lark/pkg/metrics"
	"github.com/larkmail/lark/vacation"
)

// Handler dispatches decoded method calls to their implementations.
type Handler struct {
	engine    *mailbox.Engine
	mailboxes mailbox.Store
	rules     filter.Store
	vacations vacation.Store
	clock     vacation.Clock
}

// NewHandler wires the method implementations to their stores.
func NewHandler(engine *mailbox.Engine, mailboxes mailbox.Store, rules filter.Store, vacations vacation.Store, clock vacation.Clock) *Handler {
	if clock == nil {
		clock = vacation.SystemClock{}
	}
	return &Handler{
		engine:    engine,
		mailboxes: mailboxes,
		rules:     rules,
		vacations: vacations,
		clock:     clock,
	}
}

// Dispatch runs one method call and returns its response triple.
func (h *Handler) Dispatch(ctx context.Context, accountID string, call *methodCall) methodResponse {
	start := time.Now()
	resp := h.dispatch(ctx, accountID, call)
	metrics.MethodDuration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())

	status := "ok"
	if resp.Name == "error" {
		status = "error"
	}
	metrics.MethodCalls.WithLabelValues(call.Name, status).Inc()
	return resp
}

func (h *Handler) dispatch(ctx context.Context, accountID string, call *methodCall) methodResponse {
	switch call.Name {
	case "getMailboxes":
		return h.getMailboxes(ctx, accountID, call)
	case "setMailboxes":
		return h.setMailboxes(ctx, accountID, call)
	case "getFilter":
		return h.getFilter(ctx, accountID, call)
	case "setFilter":
		return h.setFilter(ctx, accountID, call)
	case "getVacationResponse":
		return h.getVacationResponse(ctx, accountID, call)
	case "setVacationResponse":
		return h.setVacationResponse(ctx, accountID, call)
	}
	logger.Warn("unknown JMAP method", "method", call.Name)
	return errorResponse(call.Tag, "unknownMethod", "")
}

// rejectField returns an invalidArguments response when the named argument
// field carries a non-null value. Explicit nulls pass.
func rejectField(call *methodCall, field, requestType string) (methodResponse, bool) {
	var args map[string]json.RawMessage
	if len(call.Args) > 0 {
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return invalidArguments(call.Tag, fmt.Sprintf("Failed to parse request arguments: %v", err)), true
		}
	}
	raw, ok := args[field]
	if !ok || string(raw) == "null" {
		return methodResponse{}, false
	}
	return invalidArguments(call.Tag, fmt.Sprintf("The field '%s' of '%s' is not supported", field, requestType)), true
}

func (h *Handler) getMailboxes(ctx context.Context, accountID string, call *methodCall) methodResponse {
	if resp, rejected := rejectField(call, "accountId", "GetMailboxesRequest"); rejected {
		return resp
	}
	mailboxes, err := h.mailboxes.ListMailboxes(ctx, accountID)
	if err != nil {
		logger.Error("failed to list mailboxes", "account", accountID, "error", err)
		return errorResponse(call.Tag, "serverError", "")
	}
	tree := mailbox.NewTree(mailboxes)
	list := []mailboxView{}
	for _, m := range tree.All() {
		list = append(list, viewOfMailbox(m))
	}
	return methodResponse{
		Name: "mailboxes",
		Args: getMailboxesResponse{List: list, NotFound: []string{}},
		Tag:  call.Tag,
	}
}

func (h *Handler) setMailboxes(ctx context.Context, accountID string, call *methodCall) methodResponse {
	if resp, rejected := rejectField(call, "accountId", "SetMailboxesRequest"); rejected {
		return resp
	}
	var req setMailboxesRequest
	if err := json.Unmarshal(call.Args, &req); err != nil {
		return invalidArguments(call.Tag, fmt.Sprintf("Failed to parse request arguments: %v", err))
	}

	batch, resp, ok := decodeBatch(call.Tag, &req)
	if !ok {
		return resp
	}

	res, err := h.engine.Apply(ctx, accountID, batch)
	if err != nil {
		logger.Error("mailbox batch failed", "account", accountID, "error", err)
		return errorResponse(call.Tag, "serverError", "")
	}
	return methodResponse{Name: "mailboxesSet", Args: viewOfResult(res), Tag: call.Tag}
}

// decodeBatch turns the raw request into an engine batch. Server-assigned
// fields supplied on create abort the whole call.
func decodeBatch(tag string, req *setMailboxesRequest) (*mailbox.Batch, methodResponse, bool) {
	batch := &mailbox.Batch{Update: map[mailbox.ID]mailbox.UpdatePatch{}}

	for cid, raw := range req.Create {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, invalidArguments(tag, fmt.Sprintf("Failed to parse request arguments: %v", err)), false
		}
		for _, forbidden := range []string{"role", "sortOrder"} {
			if _, ok := fields[forbidden]; ok {
				return nil, invalidArguments(tag,
					fmt.Sprintf("The field '%s' of 'MailboxCreateRequest' is not supported", forbidden)), false
			}
		}
		var spec struct {
			Name     string  `json:"name"`
			ParentID *string `json:"parentId"`
		}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, invalidArguments(tag, fmt.Sprintf("Failed to parse request arguments: %v", err)), false
		}
		batch.Create = append(batch.Create, mailbox.Creation{
			CreationID:    cid,
			CreateRequest: mailbox.CreateRequest{Name: spec.Name, ParentID: spec.ParentID},
		})
	}

	for id, raw := range req.Update {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, invalidArguments(tag, fmt.Sprintf("Failed to parse request arguments: %v", err)), false
		}
		var spec struct {
			Name       *string             `json:"name"`
			ParentID   *string             `json:"parentId"`
			SharedWith map[string][]string `json:"sharedWith"`
		}
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil, invalidArguments(tag, fmt.Sprintf("Failed to parse request arguments: %v", err)), false
		}
		patch := mailbox.UpdatePatch{Name: spec.Name}
		if _, ok := fields["parentId"]; ok {
			patch.HasParentID = true
			if spec.ParentID != nil {
				parent := mailbox.ID(*spec.ParentID)
				patch.ParentID = &parent
			}
		}
		if spec.SharedWith != nil {
			patch.SharedWith = map[string]mailbox.Rights{}
			for principal, rights := range spec.SharedWith {
				patch.SharedWith[principal] = mailbox.Rights(rights)
			}
		}
		batch.Update[mailbox.ID(id)] = patch
	}

	for _, id := range req.Destroy {
		batch.Destroy = append(batch.Destroy, mailbox.ID(id))
	}
	return batch, methodResponse{}, true
}

func (h *Handler) getFilter(ctx context.Context, accountID string, call *methodCall) methodResponse {
	if resp, rejected := rejectField(call, "accountId", "GetFilterRequest"); rejected {
		return resp
	}
	rules, err := h.rules.GetRules(ctx, accountID)
	if err != nil {
		logger.Error("failed to load filter rules", "account", accountID, "error", err)
		return errorResponse(call.Tag, "serverError", "")
	}
	if rules == nil {
		rules = []filter.Rule{}
	}
	return methodResponse{
		Name: "filter",
		Args: map[string]interface{}{"singleton": rules},
		Tag:  call.Tag,
	}
}

func (h *Handler) setFilter(ctx context.Context, accountID string, call *methodCall) methodResponse {
	if resp, rejected := rejectField(call, "accountId", "SetFilterRequest"); rejected {
		return resp
	}
	if resp, rejected := rejectField(call, "ifInState", "SetFilterRequest"); rejected {
		return resp
	}
	var req struct {
		Update map[string]json.RawMessage `json:"update"`
	}
	if err := json.Unmarshal(call.Args, &req); err != nil {
		return invalidArguments(call.Tag, fmt.Sprintf("Failed to parse request arguments: %v", err))
	}
	raw, ok := req.Update["singleton"]
	if !ok {
		return invalidArguments(call.Tag, `update field should just contain one entry with key "singleton"`)
	}

	var rules []filter.Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		var parseErr *filter.ParseError
		if errors.As(err, &parseErr) {
			return invalidArguments(call.Tag, parseErr.Description)
		}
		return invalidArguments(call.Tag, fmt.Sprintf("Failed to parse request arguments: %v", err))
	}

	if verr := filter.ValidateRules(rules); verr != nil {
		return methodResponse{
			Name: "filterSet",
			Args: map[string]interface{}{
				"updated": []string{},
				"notUpdated": map[string]setErrorView{
					"singleton": {Type: "invalidArguments", Description: verr.Description},
				},
			},
			Tag: call.Tag,
		}
	}

	if err := h.rules.SetRules(ctx, accountID, rules); err != nil {
		logger.Error("failed to store filter rules", "account", accountID, "error", err)
		return errorResponse(call.Tag, "serverError", "")
	}
	return methodResponse{
		Name: "filterSet",
		Args: map[string]interface{}{"updated": []string{"singleton"}},
		Tag:  call.Tag,
	}
}

func (h *Handler) getVacationResponse(ctx context.Context, accountID string, call *methodCall) methodResponse {
	if resp, rejected := rejectField(call, "accountId", "GetVacationRequest"); rejected {
		return resp
	}
	current, err := h.vacations.Get(ctx, accountID)
	if err != nil {
		logger.Error("failed to load vacation response", "account", accountID, "error", err)
		return errorResponse(call.Tag, "serverError", "")
	}
	return methodResponse{
		Name: "vacationResponse",
		Args: map[string]interface{}{
			"accountId": nil,
			"list":      []vacationView{viewOfVacation(current, h.clock.Now())},
		},
		Tag: call.Tag,
	}
}

func (h *Handler) setVacationResponse(ctx context.Context, accountID string, call *methodCall) methodResponse {
	if resp, rejected := rejectField(call, "accountId", "SetVacationRequest"); rejected {
		return resp
	}
	var req struct {
		Update map[string]json.RawMessage `json:"update"`
	}
	if err := json.Unmarshal(call.Args, &req); err != nil {
		return invalidArguments(call.Tag, fmt.Sprintf("Failed to parse request arguments: %v", err))
	}
	raw, ok := req.Update["singleton"]
	if !ok || len(req.Update) != 1 {
		return invalidArguments(call.Tag, `update field should just contain one entry with key "singleton"`)
	}

	var patch vacation.Patch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return invalidArguments(call.Tag, fmt.Sprintf("Failed to parse request arguments: %v", err))
	}
	if patch.ID != nil && *patch.ID != "singleton" {
		return methodResponse{
			Name: "vacationResponseSet",
			Args: map[string]interface{}{
				"updated": []string{},
				"notUpdated": map[string]setErrorView{
					"singleton": {
						Type: "invalidArguments",
						Description: fmt.Sprintf(
							`There is one VacationResponse object per account, with id set to "singleton" and not to %s`,
							*patch.ID),
					},
				},
			},
			Tag: call.Tag,
		}
	}

	current, err := h.vacations.Get(ctx, accountID)
	if err != nil {
		logger.Error("failed to load vacation response", "account", accountID, "error", err)
		return errorResponse(call.Tag, "serverError", "")
	}
	patch.Apply(current)
	if err := h.vacations.Put(ctx, accountID, current); err != nil {
		logger.Error("failed to store vacation response", "account", accountID, "error", err)
		return errorResponse(call.Tag, "serverError", "")
	}
	return methodResponse{
		Name: "vacationResponseSet",
		Args: map[string]interface{}{"updated": []string{"singleton"}},
		Tag:  call.Tag,
	}
}
